package history

import (
	"context"

	"github.com/ricesearch/qac-eval/internal/bus"
	"github.com/ricesearch/qac-eval/internal/evaluation"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
)

// Recorder returns a bus handler that saves eval.completed run summaries
// into store. Events of other types are ignored.
func Recorder(store Store, log *logger.Logger) bus.Handler {
	if log == nil {
		log = logger.Default()
	}
	return func(ctx context.Context, event bus.Event) error {
		if event.Type != bus.TypeEvalCompleted {
			return nil
		}

		var run evaluation.RunSummary
		if err := event.DecodePayload(&run); err != nil {
			return errors.Wrap(errors.CodeValidation, "decoding run summary", err)
		}
		if run.ID == "" {
			run.ID = event.CorrelationID
		}
		if run.ID == "" {
			return errors.ValidationError("run summary has no id").
				WithDetail("event_id", event.ID)
		}

		if err := store.Save(ctx, &run); err != nil {
			return err
		}

		log.WithRun(run.ID).Info("Recorded run from bus", "event_id", event.ID, "source", event.Source)
		return nil
	}
}
