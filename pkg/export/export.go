// Package export writes journal records for offline review.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/cad/core/dispatch/logging"
)

// WriteJSON writes the records to w as one JSON array.
func WriteJSON(w io.Writer, records []logging.LogRecord) error {
	if records == nil {
		records = []logging.LogRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

var csvHeader = []string{"timestamp", "command", "call_id", "unit_ids", "assigned", "skipped", "errors", "status_id", "department_id", "panic"}

// WriteCSV writes one row per record. List columns are joined with ";" and
// per-unit errors are written as unit=message pairs sorted by unit.
func WriteCSV(w io.Writer, records []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Command,
			r.CallID,
			strings.Join(r.UnitIDs, ";"),
			strings.Join(r.Response.Assigned, ";"),
			strings.Join(r.Response.Skipped, ";"),
			joinErrors(r.Response.Errors),
			r.Response.StatusID,
			r.Response.DepartmentID,
			r.Response.Panic,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinErrors(errs map[string]string) string {
	if len(errs) == 0 {
		return ""
	}
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+"="+errs[id])
	}
	return strings.Join(parts, ";")
}
