// Package directory resolves unit ids to one of the unit variants.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
)

// ErrNotFound is returned when no unit matches, or when the matching unit is
// rejected by a predicate. Callers treat both as "not currently eligible".
var ErrNotFound = fmt.Errorf("unit %w", store.ErrNotFound)

// Predicate filters a resolved unit.
type Predicate func(model.Unit) bool

// NotOffDuty accepts units whose status is set and is not the off-duty status.
func NotOffDuty(u model.Unit) bool { return !model.OffDuty(u) }

// FindUnit resolves id against officers, EMS/FD deputies and combined units.
func FindUnit(ctx context.Context, tx store.Units, id string, preds ...Predicate) (model.Unit, error) {
	u, err := tx.FindUnit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find unit %s: %w", id, err)
	}
	for _, p := range preds {
		if !p(u) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return u, nil
}
