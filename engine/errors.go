package engine

import (
	"errors"
	"fmt"

	"github.com/vegasq/pqsql/plan"
)

// Stage names a step of the query pipeline.
type Stage string

const (
	StageRegister    Stage = "register"
	StagePlan        Stage = "plan"
	StageOptimize    Stage = "optimize"
	StagePhysicalize Stage = "physicalize"
	StageCollect     Stage = "collect"
)

// Error categories. A *QueryError matches the category of its stage.
var (
	ErrSource    = errors.New("source error")
	ErrPlan      = errors.New("plan error")
	ErrResource  = errors.New("resource error")
	ErrExecution = errors.New("execution error")
)

var stageCategory = map[Stage]error{
	StageRegister:    ErrSource,
	StagePlan:        ErrPlan,
	StageOptimize:    ErrPlan,
	StagePhysicalize: ErrResource,
	StageCollect:     ErrExecution,
}

// QueryError is returned by every failing stage.
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is matches the category sentinel of the stage. A malformed plan is a
// plan error even when physicalization detects it.
func (e *QueryError) Is(target error) bool {
	return e.category() == target
}

func (e *QueryError) category() error {
	if errors.Is(e.Err, plan.ErrPlanInvariantViolation) {
		return ErrPlan
	}
	return stageCategory[e.Stage]
}

func stageError(stage Stage, err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Stage: stage, Err: err}
}
