/*

This file contains the types for offline intents: user commands captured
while disconnected and replayed in order once connectivity resumes.

*/

package types

import (
	"encoding/json"
	"time"
)

// IntentStatus is the lifecycle state of an offline intent. Transitions are
// monotonic: queued -> processing -> completed|failed, never backwards.
type IntentStatus string

const (
	IntentQueued     IntentStatus = "queued"
	IntentProcessing IntentStatus = "processing"
	IntentCompleted  IntentStatus = "completed"
	IntentFailed     IntentStatus = "failed"
)

// OfflineIntent is one durably queued user command.
type OfflineIntent struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	FunctionName string          `json:"function_name"`
	Args         json.RawMessage `json:"args"`
	Status       IntentStatus    `json:"status"`
	Error        string          `json:"error,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}

// IntentResult is the outcome of replaying one intent during a drain pass.
type IntentResult struct {
	IntentID string       `json:"intent_id"`
	Status   IntentStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
}
