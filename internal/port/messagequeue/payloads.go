package messagequeue

// EvaluationCompletedPayload is the schema for evaluations.completed and
// evaluations.rejected messages.
type EvaluationCompletedPayload struct {
	RunID              string  `json:"run_id"`
	PromiseID          string  `json:"promise_id"`
	Action             string  `json:"action"`
	Attempts           int     `json:"attempts"`
	BiasScore          float64 `json:"bias_score"`
	HallucinationScore float64 `json:"hallucination_score"`
	SatisfactionScore  float64 `json:"satisfaction_score"`
	BestAttempt        bool    `json:"best_attempt"`
	Warning            string  `json:"warning,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// PromiseUpdatedPayload is the schema for promises.updated messages.
type PromiseUpdatedPayload struct {
	PromiseID string `json:"promise_id"`
	Status    string `json:"status"`
}
