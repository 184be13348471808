package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kilianp07/cad/core/dispatch"
)

type unitPath struct {
	UnitID string `path:"unitId"`
}

type unitOutput struct {
	Body UnitResponse `json:"body"`
}

func registerUnits(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-unit",
		Method:      http.MethodGet,
		Path:        "/units/{unitId}",
		Summary:     "Get a unit",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *unitPath) (*unitOutput, error) {
		u, err := h.mgr.Unit(ctx, in.UnitID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &unitOutput{Body: unitResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unit-logs",
		Method:      http.MethodGet,
		Path:        "/units/{unitId}/logs",
		Summary:     "List a unit's shifts, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, in *unitPath) (*struct {
		Body []LogResponse `json:"body"`
	}, error) {
		logs, err := h.mgr.UnitLogs(ctx, in.UnitID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []LogResponse `json:"body"`
		}{Body: logResponses(logs, time.Now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-unit-status",
		Method:      http.MethodPut,
		Path:        "/units/{unitId}/status",
		Summary:     "Set a unit's status",
		Errors:      commandErrors,
	}, func(ctx context.Context, in *struct {
		UnitID string `path:"unitId"`
		Body   struct {
			StatusID string `json:"statusId" minLength:"1"`
			UserID   string `json:"userId,omitempty"`
		} `json:"body"`
	}) (*unitOutput, error) {
		u, err := h.mgr.SetUnitStatus(ctx, dispatch.SetUnitStatus{UnitID: in.UnitID, StatusID: in.Body.StatusID, UserID: in.Body.UserID})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &unitOutput{Body: unitResponse(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-unit-department",
		Method:      http.MethodPut,
		Path:        "/units/{unitId}/department",
		Summary:     "Move a unit into a department",
		Description: "Whitelisted departments keep the unit in the default department until approval.",
		Errors:      commandErrors,
	}, func(ctx context.Context, in *struct {
		UnitID string `path:"unitId"`
		Body   struct {
			DepartmentID string `json:"departmentId" minLength:"1"`
		} `json:"body"`
	}) (*struct {
		Body DepartmentResponse `json:"body"`
	}, error) {
		u, res, err := h.mgr.SetDepartment(ctx, dispatch.SetDepartment{UnitID: in.UnitID, DepartmentID: in.Body.DepartmentID})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body DepartmentResponse `json:"body"`
		}{Body: DepartmentResponse{
			Unit: unitResponse(u),
			Whitelist: WhitelistResponse{
				StatusID:     res.WhitelistStatusID,
				State:        string(res.State),
				Pending:      res.Gated(),
				DepartmentID: res.Department.ID,
			},
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-panic",
		Method:      http.MethodPost,
		Path:        "/units/{unitId}/panic",
		Summary:     "Force a unit's panic indicator on or off",
		Errors:      commandErrors,
	}, func(ctx context.Context, in *struct {
		UnitID string `path:"unitId"`
		Body   struct {
			On bool `json:"on"`
		} `json:"body"`
	}) (*unitOutput, error) {
		u, err := h.mgr.TogglePanic(ctx, dispatch.TogglePanic{UnitID: in.UnitID, On: in.Body.On})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &unitOutput{Body: unitResponse(u)}, nil
	})
}
