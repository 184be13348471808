package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kilianp07/cad/core/dispatch"
)

type callPath struct {
	CallID string `path:"callId"`
}

type callOutput struct {
	Body CallResponse `json:"body"`
}

var commandErrors = []int{http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError}

func registerCalls(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-call",
		Method:      http.MethodGet,
		Path:        "/calls/{callId}",
		Summary:     "Get a call with its assigned units",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *callPath) (*callOutput, error) {
		c, err := h.mgr.Call(ctx, in.CallID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &callOutput{Body: callResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-units",
		Method:      http.MethodPost,
		Path:        "/calls/{callId}/units",
		Summary:     "Assign units to a call",
		Description: "Each unit is linked independently. Units at capacity are reported as skipped.",
		Errors:      commandErrors,
	}, func(ctx context.Context, in *struct {
		CallID string `path:"callId"`
		Body   struct {
			UnitIDs []string `json:"unitIds" minItems:"1"`
		} `json:"body"`
	}) (*struct {
		Body AssignResponse `json:"body"`
	}, error) {
		res, err := h.mgr.AssignUnitsToCall(ctx, dispatch.AssignUnitsToCall{CallID: in.CallID, UnitIDs: in.Body.UnitIDs})
		if err != nil {
			return nil, h.handleError(err)
		}
		out := AssignResponse{
			CallID:   res.CallID,
			Assigned: nonNil(res.Assigned),
			Skipped:  nonNil(res.Skipped),
			Errors:   make(map[string]UnitError, len(res.Errors)),
		}
		for id, uerr := range res.Errors {
			out.Errors[id] = UnitError{Code: errorCode(uerr), Message: uerr.Error()}
		}
		return &struct {
			Body AssignResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unassign-unit",
		Method:      http.MethodDelete,
		Path:        "/calls/{callId}/units/{unitId}",
		Summary:     "Remove a unit from a call",
		Errors:      commandErrors,
	}, func(ctx context.Context, in *struct {
		CallID string `path:"callId"`
		UnitID string `path:"unitId"`
	}) (*callOutput, error) {
		c, err := h.mgr.UnassignUnitFromCall(ctx, dispatch.UnassignUnitFromCall{CallID: in.CallID, UnitID: in.UnitID})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &callOutput{Body: callResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-call",
		Method:      http.MethodPost,
		Path:        "/calls/{callId}/end",
		Summary:     "End a call and release its units",
		Errors:      commandErrors,
	}, func(ctx context.Context, in *callPath) (*callOutput, error) {
		c, err := h.mgr.EndCall(ctx, dispatch.EndCall{CallID: in.CallID})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &callOutput{Body: callResponse(c)}, nil
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
