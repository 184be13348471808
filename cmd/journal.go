package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cad/config"
	"github.com/kilianp07/cad/core/dispatch/logging"
	"github.com/kilianp07/cad/pkg/export"
)

var journalOpts struct {
	format  string
	out     string
	start   string
	end     string
	unitID  string
	callID  string
	command string
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Export the command journal as JSON or CSV",
	RunE:  runJournal,
}

func init() {
	f := journalCmd.Flags()
	f.StringVar(&journalOpts.format, "format", "json", "output format (json or csv)")
	f.StringVarP(&journalOpts.out, "out", "o", "", "output file (default stdout)")
	f.StringVar(&journalOpts.start, "start", "", "RFC 3339 lower bound")
	f.StringVar(&journalOpts.end, "end", "", "RFC 3339 upper bound")
	f.StringVar(&journalOpts.unitID, "unit", "", "only records touching this unit")
	f.StringVar(&journalOpts.callID, "call", "", "only records of this call")
	f.StringVar(&journalOpts.command, "command", "", "only records of this command")
	rootCmd.AddCommand(journalCmd)
}

func journalQuery() (logging.LogQuery, error) {
	q := logging.LogQuery{UnitID: journalOpts.unitID, CallID: journalOpts.callID, Command: journalOpts.command}
	var err error
	if journalOpts.start != "" {
		if q.Start, err = time.Parse(time.RFC3339, journalOpts.start); err != nil {
			return q, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if journalOpts.end != "" {
		if q.End, err = time.Parse(time.RFC3339, journalOpts.end); err != nil {
			return q, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return q, nil
}

func runJournal(cmd *cobra.Command, args []string) error {
	var write func(io.Writer, []logging.LogRecord) error
	switch journalOpts.format {
	case "json":
		write = export.WriteJSON
	case "csv":
		write = export.WriteCSV
	default:
		return fmt.Errorf("unsupported format %q", journalOpts.format)
	}
	q, err := journalQuery()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := cfg.Journal.Open()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if store == nil {
		return errors.New("journal backend is disabled")
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	var w io.Writer = cmd.OutOrStdout()
	if journalOpts.out != "" {
		f, err := os.Create(journalOpts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return write(w, records)
}
