package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/faultline/internal/archive"
	"github.com/vietddude/faultline/internal/faultlog"
)

var archivesLimit int

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List the most recent archived fault-log snapshots",
	RunE:  runArchives,
}

func init() {
	archivesCmd.Flags().IntVar(&archivesLimit, "limit", 10, "number of snapshots to list")
	rootCmd.AddCommand(archivesCmd)
}

func runArchives(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ARCHIVED_AT\tERRORS\tCRITICAL\tRECOVERED")

	switch cfg.Archive.Kind {
	case "redis":
		sink, err := archive.NewRedisSink(ctx, cfg.Archive.Redis)
		if err != nil {
			return err
		}
		defer func() {
			_ = sink.Close()
		}()

		snapshots, err := sink.Recent(ctx, archivesLimit)
		if err != nil {
			return err
		}
		for _, a := range snapshots {
			writeArchive(w, a)
		}

	case "postgres":
		sink, err := archive.NewPostgresSink(ctx, cfg.Archive.Database)
		if err != nil {
			return err
		}
		defer func() {
			_ = sink.Close()
		}()

		rows, err := sink.Recent(ctx, archivesLimit)
		if err != nil {
			return err
		}
		writeStored(w, cmd.ErrOrStderr(), rows)

	default:
		return fmt.Errorf("no archive sink configured (archive.kind=%s)", cfg.Archive.Kind)
	}
	return w.Flush()
}

func writeArchive(w io.Writer, a faultlog.Archive) {
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", a.ArchivedAt.Format(time.RFC3339), a.ErrorCount, a.Statistics.Critical, a.Statistics.Recovered)
}

// writeStored prints decodable rows to w and reports the rest on errw.
func writeStored(w, errw io.Writer, rows []archive.StoredArchive) {
	for _, row := range rows {
		a, err := row.Decode()
		if err != nil {
			_, _ = fmt.Fprintf(errw, "skipping archive %d: %v\n", row.ID, err)
			continue
		}
		writeArchive(w, a)
	}
}
