package services

import (
	"time"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const (
	StageResolveObject  = "resolve_object"
	StageResolveVersion = "resolve_version"
	StageResolveLogic   = "resolve_logic"
	StageGrainValidate  = "grain_validation"
	StageResolveMapping = "resolve_mapping"
	StagePolicyCheck    = "policy_check"
	StageRender         = "render"
	StagePreview        = "preview"
	StageExecute        = "execute"
	StagePersistAudit   = "persist_audit"
	StageReplay         = "replay"
)

type traceRecorder struct {
	steps []types.TraceStep
	now   func() time.Time
}

func (t *traceRecorder) add(step string, data types.TraceData) {
	if data == nil {
		data = types.TraceData{}
	}
	t.steps = append(t.steps, types.TraceStep{Step: step, Timestamp: t.now().UTC(), Data: data})
}

func (t *traceRecorder) snapshot() []types.TraceStep {
	return append([]types.TraceStep(nil), t.steps...)
}
