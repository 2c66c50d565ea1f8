package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-quiz/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest is sent by the client to save a single answer. A null
// answer_payload clears the answer.
type AutosaveRequest struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id"`
	Payload    json.RawMessage `json:"answer_payload"`
}

// SubmitRequest is sent by the client to finish and grade the attempt.
type SubmitRequest struct {
	Action         Action `json:"action"`
	ElapsedSeconds *int   `json:"elapsed_seconds,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

// SavedResponse acknowledges an autosave. Status is "saved", or "queued" when
// the answer waits in the retry queue.
type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
	Status     string `json:"status"`
}

// SubmittedResponse carries the learner's view of the closed attempt.
type SubmittedResponse struct {
	Event  Event       `json:"event"`
	Result interface{} `json:"result"`
}

type ErrorResponse struct {
	Event   Event            `json:"event"`
	Code    response.ErrCode `json:"code"`
	Message string           `json:"message"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
