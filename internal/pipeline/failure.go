package pipeline

import (
	"context"
	"fmt"

	"tubeask/internal/logging"
	"tubeask/internal/services"
)

// Failure reports the stage a run was in when it stopped. It wraps the
// underlying cause so errors.Is still matches the services sentinels.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	if f.Stage == "" || f.Stage == StageIdle {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// fail absorbs the run into the failed stage, records the outcome, and
// returns the stage-tagged failure.
func (o *Orchestrator) fail(ctx context.Context, st *runState, cause error) error {
	at := st.stage
	if !st.stage.Terminal() {
		st.stage = StageFailed
	}

	kind := services.Kind(cause)
	stageCtx := services.WithStage(ctx, string(at))
	logger := logging.WithContext(stageCtx, o.logger)
	logger.Error("stage failed",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("failure_kind", kind),
		logging.Alert("stage_failure"),
	)

	if o.store != nil && st.record != nil {
		st.record.SetFailed(kind, cause.Error())
		if err := o.store.Update(stageCtx, st.record); err != nil {
			logging.WarnWithContext(logger,
				"could not record run failure", "run_ledger_update_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history will not reflect this failure"),
			)
		}
	}

	return &Failure{Stage: at, Err: cause}
}
