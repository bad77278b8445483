package worker

// Message shape forwarded to the frontend over redis pubsub / websocket.
// Field names must stay in sync with the client.
type AnalysisNotifyMessage struct {
	Status        string `json:"status"`
	AnalysisID    uint   `json:"analysis_id"`
	ResumeID      uint   `json:"resume_id"`
	Type          string `json:"type"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}
