package checkout

import (
	"context"

	"github.com/shoplite/checkout-engine/internal/observability"
)

// compensation is the undo of one committed forward step.
type compensation struct {
	name string
	run  func(ctx context.Context) error
}

// undoStack collects compensations as forward steps commit. On failure the
// stack is unwound in reverse order; a failing compensation is logged and the
// unwind continues, it is never retried.
type undoStack struct {
	comps []compensation
}

func (s *undoStack) push(name string, run func(ctx context.Context) error) {
	s.comps = append(s.comps, compensation{name: name, run: run})
}

func (s *undoStack) unwind(ctx context.Context, logger observability.Logger, counter observability.Counter) {
	for i := len(s.comps) - 1; i >= 0; i-- {
		comp := s.comps[i]
		counter.Add(1, observability.L("step", comp.name))
		if err := comp.run(ctx); err != nil {
			logger.Error("compensation_failed",
				observability.F("step", comp.name),
				observability.F("error", err.Error()),
			)
			continue
		}
		logger.Info("compensation_applied",
			observability.F("step", comp.name),
		)
	}
	s.comps = s.comps[:0]
}
