package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kilianp07/cad/core/dispatch/logging"
)

func registerJournal(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "journal",
		Method:      http.MethodGet,
		Path:        "/journal",
		Summary:     "Query the command journal",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, in *struct {
		Start   string `query:"start" doc:"RFC 3339 lower bound"`
		End     string `query:"end" doc:"RFC 3339 upper bound"`
		UnitID  string `query:"unit_id"`
		CallID  string `query:"call_id"`
		Command string `query:"command"`
	}) (*struct {
		Body []logging.LogRecord `json:"body"`
	}, error) {
		q := logging.LogQuery{UnitID: in.UnitID, CallID: in.CallID, Command: in.Command}
		var err error
		if q.Start, err = parseTime(in.Start); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "", "invalid start: "+err.Error(), nil)
		}
		if q.End, err = parseTime(in.End); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "", "invalid end: "+err.Error(), nil)
		}
		records, err := h.mgr.Journal(ctx, q)
		if err != nil {
			return nil, h.handleError(err)
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		return &struct {
			Body []logging.LogRecord `json:"body"`
		}{Body: records}, nil
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
