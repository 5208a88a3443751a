package job

import (
	"fmt"
	"strings"
)

// Stage names as they appear in logs and notifications.
const (
	StageInput     = "getInputData"
	StageMap       = "map"
	StageReduce    = "reduce"
	StageSummarize = "summarize"
)

// Kind classifies a stage failure.
type Kind int

const (
	KindInput Kind = iota + 1
	KindCalculation
	KindPersistence
)

// Code returns the error code reported to operators.
func (k Kind) Code() string {
	switch k {
	case KindInput:
		return "INPUT_STAGE_FAILED"
	case KindCalculation:
		return "CALCULATION_FAILED"
	case KindPersistence:
		return "PERSISTENCE_FAILED"
	}
	return "UNKNOWN_FAILURE"
}

// StageError is a failure recorded against one stage and, for map and reduce, one order.
// Stage errors never abort sibling orders; they are collected and escalated once the
// run has finished.
type StageError struct {
	Kind    Kind
	Stage   string
	OrderID string
	Err     error
}

func (e *StageError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s: order %s: %v", e.Stage, e.Kind.Code(), e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind.Code(), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Code returns the error code of the failure kind.
func (e *StageError) Code() string { return e.Kind.Code() }

// notificationLine is the per-error line listed in a stage failure notification.
func (e *StageError) notificationLine() string {
	if e.OrderID != "" {
		return "Error during processing Sales Order ID : " + e.OrderID
	}
	return e.Err.Error()
}

// groupByStage groups errors by stage, preserving stage order of first appearance.
func groupByStage(errs []*StageError) (stages []string, byStage map[string][]*StageError) {
	byStage = make(map[string][]*StageError)
	for _, e := range errs {
		if _, ok := byStage[e.Stage]; !ok {
			stages = append(stages, e.Stage)
		}
		byStage[e.Stage] = append(byStage[e.Stage], e)
	}
	return stages, byStage
}

func joinNotificationLines(errs []*StageError) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.notificationLine()
	}
	return strings.Join(lines, "\n")
}
