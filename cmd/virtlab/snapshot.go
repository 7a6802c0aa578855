package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkessler/virtlab/internal/output"
	"github.com/mkessler/virtlab/internal/snapshot"
)

var (
	snapDescription string
	snapFreeze      bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage external disk-only VM snapshots",
}

func init() {
	snapshotCreateCmd.Flags().StringVarP(&snapDescription, "description", "d", "", "snapshot description")
	snapshotCreateCmd.Flags().BoolVar(&snapFreeze, "freeze", false, "freeze guest filesystems via the guest agent (best effort)")

	snapshotListCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	snapshotListCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit headers in table output")

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotRevertCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create <vm-name> <snapshot-name>",
	Short: "Create an external disk-only snapshot",
	Long: `Create an external snapshot of every file-backed disk of a VM.

Each disk gets a qcow2 overlay file next to its base image, named
<image>.<snapshot-name>.<ext>. The VM keeps running; with --freeze the
guest agent quiesces filesystems around the snapshot when available.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := snapshot.CreateOptions{
			VMName:      args[0],
			Name:        args[1],
			Description: snapDescription,
			FreezeFS:    snapFreeze,
		}
		if err := snapshot.Create(context.Background(), libvirtSocket(cfg), log.Logger, opts); err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}

		fmt.Printf("Snapshot %q of VM %q created\n", args[1], args[0])
		return nil
	},
}

var snapshotRevertCmd = &cobra.Command{
	Use:   "revert <vm-name> <snapshot-name>",
	Short: "Revert a VM to a snapshot",
	Long: `Revert a VM to the disk state captured by a snapshot.

Changes made after the snapshot are discarded. A disk-only snapshot
leaves the VM shut off after the revert.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := snapshot.Revert(context.Background(), libvirtSocket(cfg), log.Logger, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to revert: %w", err)
		}

		fmt.Printf("VM %q reverted to snapshot %q\n", args[0], args[1])
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <vm-name> <snapshot-name>",
	Short: "Delete a snapshot's metadata",
	Long: `Delete a snapshot from the hypervisor.

Only metadata is removed; overlay files stay on disk and are logged for
manual cleanup.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := snapshot.Delete(context.Background(), libvirtSocket(cfg), log.Logger, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to delete snapshot: %w", err)
		}

		fmt.Printf("Snapshot %q of VM %q deleted\n", args[1], args[0])
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list <vm-name>",
	Short: "List a VM's snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		infos, err := snapshot.List(context.Background(), libvirtSocket(cfg), log.Logger, args[0])
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		text, err := formatter.FormatSnapshotList(infos)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}
