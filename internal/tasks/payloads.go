package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants shared by the queue producer and the worker.
const (
	TypeAnalysisRun = "analysis:run"
)

// AnalysisRunPayload identifies the PENDING analysis row to execute.
type AnalysisRunPayload struct {
	AnalysisID    uint   `json:"analysis_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewAnalysisRunTask builds the queue task for one analysis run.
func NewAnalysisRunTask(analysisID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AnalysisRunPayload{
		AnalysisID:    analysisID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAnalysisRun, payload), nil
}
