package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkessler/virtlab/internal/config"
	"github.com/mkessler/virtlab/internal/sshclient"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Global configuration flags.
var (
	configFile string
	verbose    bool
	quiet      bool
	jsonLogs   bool

	socketPath   string
	outputFormat string
	noHeaders    bool

	sshHost string
	sshPort int
	sshUser string
	sshKey  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "virtlab",
	Short: "virtlab - practice VM snapshot and challenge tool",
	Long: `virtlab manages the virtual machines behind hands-on certification
practice: external disk-only snapshots for instant retry, remote command
execution over SSH, and validation of challenge exercises against live
VM state.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "libvirt socket path (defaults to the system socket)")

	rootCmd.PersistentFlags().StringVar(&sshHost, "host", "", "SSH host of the target VM")
	rootCmd.PersistentFlags().IntVar(&sshPort, "port", 0, "SSH port (default 22)")
	rootCmd.PersistentFlags().StringVar(&sshUser, "user", "", "SSH username")
	rootCmd.PersistentFlags().StringVar(&sshKey, "key", "", "SSH private key path")

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(waitSSHCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(challengeCmd)
}

func setupLogging() {
	if jsonLogs {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig parses the config file, or returns an empty configuration
// when none was given so flag-only invocations work.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return &config.Config{}, nil
	}
	return config.NewParser().LoadFile(configFile)
}

// libvirtSocket resolves the libvirt socket from flag, then config.
func libvirtSocket(cfg *config.Config) string {
	if socketPath != "" {
		return socketPath
	}
	return cfg.Libvirt.SocketPath
}

// resolveCredential builds the SSH credential from flags, falling back to
// the config file's ssh section per field.
func resolveCredential(cfg *config.Config) (sshclient.Credential, error) {
	cred := sshclient.Credential{
		Host:    sshHost,
		Port:    sshPort,
		User:    sshUser,
		KeyPath: sshKey,
	}

	if cfg.SSH != nil {
		base := cfg.SSH.Credential()
		if cred.Host == "" {
			cred.Host = base.Host
		}
		if cred.Port == 0 {
			cred.Port = base.Port
		}
		if cred.User == "" {
			cred.User = base.User
		}
		if cred.KeyPath == "" {
			cred.KeyPath = base.KeyPath
		}
		cred.Passphrase = base.Passphrase
	}

	if cred.Host == "" || cred.User == "" || cred.KeyPath == "" {
		return sshclient.Credential{}, fmt.Errorf("SSH target incomplete: --host, --user, and --key are required (or an ssh section in the config file)")
	}
	return cred, nil
}
