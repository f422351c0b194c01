package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInputContract = errors.New("input_contract_violation")
	ErrPersistence   = errors.New("persistence_failure")
	ErrTemplates     = errors.New("templates_unavailable")
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidConfig = errors.New("invalid_pipeline_config")
)

const (
	StageValidate          = "validate"
	StageComputeRemaining  = "compute_remaining"
	StageClassifyAndFilter = "classify_and_filter"
	StageGenerateMessages  = "generate_messages"
	StagePersist           = "persist"
)

// RunError reports the stage a run failed in. Nothing was persisted.
type RunError struct {
	Stage string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// StageOf returns the failing stage recorded on err, if any.
func StageOf(err error) string {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Stage
	}
	return ""
}
