// ABOUTME: Running-log JSON written atomically after every recorded step.
// ABOUTME: Live observers (web frontend, host monitor) tail this file for progress.
package script

import (
	"time"

	"github.com/virtualpytest/navigator/capture"
)

type stepSummary struct {
	StepNumber      int    `json:"step_number"`
	Category        string `json:"category"`
	Success         bool   `json:"success"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	FromNode        string `json:"from_node,omitempty"`
	ToNode          string `json:"to_node,omitempty"`
	Message         string `json:"message,omitempty"`
}

type runningLog struct {
	ScriptName        string        `json:"script_name"`
	TotalSteps        int           `json:"total_steps"`
	CurrentStepNumber int           `json:"current_step_number"`
	StartTime         string        `json:"start_time"`
	CompletedSteps    []stepSummary `json:"completed_steps"`
	CurrentStep       *stepSummary  `json:"current_step,omitempty"`
	EstimatedEnd      string        `json:"estimated_end,omitempty"`
}

const logTimeLayout = "2006-01-02T15:04:05Z07:00"

func summarize(s StepResult) stepSummary {
	return stepSummary{
		StepNumber:      s.StepNumber,
		Category:        s.Category,
		Success:         s.Success,
		ExecutionTimeMS: s.ExecutionTimeMS,
		FromNode:        s.FromNode,
		ToNode:          s.ToNode,
		Message:         s.Message,
	}
}

func (sc *ScriptContext) writeRunningLog(steps []StepResult) error {
	log := runningLog{
		ScriptName:        sc.ScriptName,
		TotalSteps:        sc.PlannedSteps,
		CurrentStepNumber: len(steps),
		StartTime:         sc.StartTime.UTC().Format(logTimeLayout),
	}
	// The last recorded step is the current one; completed_steps holds only
	// the steps before it.
	if n := len(steps); n > 0 {
		for _, s := range steps[:n-1] {
			log.CompletedSteps = append(log.CompletedSteps, summarize(s))
		}
		last := summarize(steps[n-1])
		log.CurrentStep = &last
	}
	if end, ok := sc.estimateEnd(steps); ok {
		log.EstimatedEnd = end.UTC().Format(logTimeLayout)
	}
	return capture.WriteJSONAtomic(sc.paths.RunningLogPath(), log)
}

// estimateEnd projects the finish time from the average step duration and the
// remaining planned steps. The caller-provided historical average wins over
// the running average when set.
func (sc *ScriptContext) estimateEnd(steps []StepResult) (time.Time, bool) {
	remaining := sc.PlannedSteps - len(steps)
	if remaining <= 0 || len(steps) == 0 {
		return time.Time{}, false
	}
	avgMS := sc.HistoricalAvgMS
	if avgMS <= 0 {
		var total int64
		for _, s := range steps {
			total += s.ExecutionTimeMS
		}
		avgMS = float64(total) / float64(len(steps))
	}
	eta := time.Duration(avgMS*float64(remaining)) * time.Millisecond
	return time.Now().Add(eta), true
}
