package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/affect/internal/codec"
	"github.com/lazypower/affect/internal/store"
)

var snapshotFormat string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List NPC sessions persisted in the database",
	Long:  "Reads the database directly; the server does not need to be running.",
	Args:  cobra.NoArgs,
	RunE:  runSnapshots,
}

var snapshotsExportCmd = &cobra.Command{
	Use:   "export <npc-id>",
	Short: "Print a persisted session's config and memories",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsExport,
}

func init() {
	snapshotsExportCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "yaml", "Output format: json or yaml")
	snapshotsCmd.AddCommand(snapshotsExportCmd)
}

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	list, err := db.ListSnapshots()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No persisted sessions.")
		return nil
	}
	for _, s := range list {
		saved := time.UnixMilli(s.SavedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(out, "%s  %-16s  mem=%-4d clock=%-6d saved %s\n", s.NpcID, s.Name, s.Memories, s.Clock, saved)
	}
	return nil
}

func runSnapshotsExport(cmd *cobra.Command, args []string) error {
	format, err := codec.ParseFormat(snapshotFormat)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	snap, err := db.LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no persisted session %s", args[0])
	}

	config, err := codec.EncodeConfig(snap.Config, format)
	if err != nil {
		return err
	}
	memories, err := codec.EncodeMemories(snap.Memories, format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == codec.YAML {
		fmt.Fprintf(out, "# config\n%s---\n# memories\n%s", config, memories)
		return nil
	}
	fmt.Fprintf(out, "{\"config\":%s,\"memories\":%s}\n", strings.TrimSpace(string(config)), strings.TrimSpace(string(memories)))
	return nil
}
