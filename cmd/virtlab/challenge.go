package main

import (
	"bytes"
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkessler/virtlab/internal/challenge"
	"github.com/mkessler/virtlab/internal/output"
	"github.com/mkessler/virtlab/internal/sshclient"
)

var (
	challengeHints int
	challengeDir   string
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Run and inspect challenge definitions",
}

func init() {
	challengeRunCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	challengeRunCmd.Flags().IntVar(&challengeHints, "hints", 0, "number of hints to reveal before the run (deducted from the score)")

	challengeListCmd.Flags().StringVar(&challengeDir, "dir", "", "challenge directory (defaults to challenges.dir from the config)")

	challengeCmd.AddCommand(challengeRunCmd)
	challengeCmd.AddCommand(challengeValidateCmd)
	challengeCmd.AddCommand(challengeListCmd)
}

var challengeRunCmd = &cobra.Command{
	Use:   "run <definition-file>",
	Short: "Run a challenge's setup and validation against a VM",
	Long: `Load a challenge definition, run its setup steps on the target VM,
then evaluate every validation assertion. All assertions are always
evaluated; the verdict is the AND of their results.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := challenge.Load(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cred, err := resolveCredential(cfg)
		if err != nil {
			return err
		}

		tracker := challenge.NewHintTracker(def.Hints)
		for i := 0; i < challengeHints; i++ {
			hint, ok := tracker.Reveal()
			if !ok {
				break
			}
			fmt.Printf("Hint %d (cost %d): %s\n", i+1, hint.Cost, hint.Text)
		}

		engine := challenge.NewEngine(sshclient.NewRunner(log.Logger), log.Logger)
		report, err := engine.Run(context.Background(), cred, def, tracker)
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{Format: output.Format(outputFormat)})
		if err != nil {
			return err
		}
		text, err := formatter.FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Print(text)

		if !report.Passed {
			return fmt.Errorf("challenge %q failed validation", def.ID)
		}
		return nil
	},
}

var challengeValidateCmd = &cobra.Command{
	Use:   "validate <definition-file>...",
	Short: "Check challenge definitions without touching a VM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			def, err := challenge.Load(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%s, %d assertions)\n", path, def.ID, len(def.Validation))
		}
		return nil
	},
}

var challengeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the challenges in a directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dir := challengeDir
		if dir == "" && cfg.Challenges != nil {
			dir = cfg.Challenges.Dir
		}
		if dir == "" {
			return fmt.Errorf("no challenge directory: pass --dir or set challenges.dir in the config")
		}

		defs, err := challenge.LoadDir(dir)
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			fmt.Println("No challenges found")
			return nil
		}

		var buf bytes.Buffer
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY\tSCORE\tASSERTIONS")
		for _, def := range defs {
			difficulty := def.Difficulty
			if difficulty == "" {
				difficulty = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
				def.ID, def.Name, difficulty, def.Score, len(def.Validation))
		}
		_ = w.Flush()
		fmt.Print(buf.String())
		return nil
	},
}
