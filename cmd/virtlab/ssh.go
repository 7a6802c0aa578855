package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkessler/virtlab/internal/sshclient"
)

var (
	runTTY     bool
	runTimeout time.Duration

	waitTimeout      time.Duration
	waitPollInterval time.Duration

	copyCreateDirs bool
)

func init() {
	runCmd.Flags().BoolVarP(&runTTY, "tty", "t", false, "allocate a pseudo-terminal for full-screen programs")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "command timeout")

	waitSSHCmd.Flags().DurationVar(&waitTimeout, "timeout", 2*time.Minute, "total time to wait for SSH")
	waitSSHCmd.Flags().DurationVar(&waitPollInterval, "poll-interval", 2*time.Second, "delay between connection attempts")

	copyCmd.Flags().BoolVar(&copyCreateDirs, "create-dirs", false, "create missing remote parent directories")
}

var runCmd = &cobra.Command{
	Use:   "run <command>...",
	Short: "Run a command on a VM over SSH",
	Long: `Run a one-shot command on the target VM and print its output.

With --tty the command gets a pseudo-terminal, so full-screen programs
render correctly. Known text editors are sent a scripted quit-without-
saving sequence so automated runs terminate instead of hanging.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cred, err := resolveCredential(cfg)
		if err != nil {
			return err
		}
		if cfg.SSH != nil && !cmd.Flags().Changed("timeout") {
			runTimeout = cfg.SSH.CommandTimeout
		}

		runner := sshclient.NewRunner(log.Logger)
		command := strings.Join(args, " ")

		var res sshclient.Result
		if runTTY {
			res = runner.ExecuteInteractive(context.Background(), cred, command, runTimeout)
		} else {
			res = runner.Execute(context.Background(), cred, command, runTimeout)
		}
		if res.Err != nil {
			return res.Err
		}

		fmt.Print(res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		if res.ExitStatus != 0 {
			return fmt.Errorf("command exited with status %d", res.ExitStatus)
		}
		return nil
	},
}

var waitSSHCmd = &cobra.Command{
	Use:   "wait-ssh",
	Short: "Wait until a VM accepts SSH connections",
	Long: `Poll the target VM at a fixed interval until SSH is reachable or the
timeout elapses. Useful after reverting a snapshot or booting a VM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cred, err := resolveCredential(cfg)
		if err != nil {
			return err
		}
		if cfg.SSH != nil {
			if !cmd.Flags().Changed("timeout") {
				waitTimeout = cfg.SSH.ReadyTimeout
			}
			if !cmd.Flags().Changed("poll-interval") {
				waitPollInterval = cfg.SSH.ReadyPollInterval
			}
		}

		runner := sshclient.NewRunner(log.Logger)
		ready, err := runner.WaitReady(context.Background(), cred, waitTimeout, waitPollInterval)
		if err != nil {
			return err
		}
		if !ready {
			return fmt.Errorf("%s did not become reachable within %s", cred.Addr(), waitTimeout)
		}

		fmt.Printf("%s is ready\n", cred.Addr())
		return nil
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy <local-path> <remote-path>",
	Short: "Copy a local file to a VM",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cred, err := resolveCredential(cfg)
		if err != nil {
			return err
		}

		runner := sshclient.NewRunner(log.Logger)
		if err := runner.CopyFile(context.Background(), cred, args[0], args[1], copyCreateDirs); err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}

		fmt.Printf("Copied %s to %s:%s\n", args[0], cred.Host, args[1])
		return nil
	},
}
