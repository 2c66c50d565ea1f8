package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams autosave and submit over a WebSocket for one attempt.
type WSHandler struct {
	attempts AttemptFlow
	queue    AnswerQueue
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts AttemptFlow, queue AnswerQueue, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		queue:    queue,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream?token=...
// The attempt must belong to the caller and still be open.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}
	studentID := middleware.GetUserID(c)

	// Ownership and state are checked before upgrading so failures get a
	// normal HTTP envelope.
	current, err := h.attempts.Result(c.Request.Context(), attemptID, studentID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	if current.Attempt.Status != model.AttemptStatusInProgress {
		response.Fail(c, http.StatusConflict, response.ErrInvalidAttemptState)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	for {
		action, raw, err := ws.ReadMessage(conn)
		if errors.Is(err, ws.ErrMalformed) {
			ws.WriteError(conn, response.ErrInvalidPayload)
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, attemptID, studentID, raw)
		case ws.ActionSubmit:
			if h.handleSubmit(conn, wsLog, attemptID, studentID, raw) {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"),
					time.Now().Add(time.Second))
				return
			}
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, response.ErrInvalidPayload)
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, attemptID, studentID uuid.UUID, raw []byte) {
	var msg ws.AutosaveRequest
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Payload) == 0 {
		ws.WriteError(conn, response.ErrInvalidPayload)
		return
	}
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		ws.WriteError(conn, response.ErrInvalidID)
		return
	}

	status, err := saveAnswer(context.Background(), h.attempts, h.queue, wsLog, model.AutosaveJob{
		AttemptID:  attemptID,
		StudentID:  studentID,
		QuestionID: questionID,
		Payload:    msg.Payload,
		SavedAt:    time.Now(),
	})
	if err != nil {
		_, code := errorCode(err)
		ws.WriteError(conn, code)
		return
	}
	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID, Status: status})
}

// handleSubmit reports whether the attempt was closed.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, attemptID, studentID uuid.UUID, raw []byte) bool {
	var msg ws.SubmitRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, response.ErrInvalidPayload)
		return false
	}

	result, err := h.attempts.Submit(context.Background(), attemptID, studentID, msg.ElapsedSeconds, model.SubmitTriggerLearner)
	if err != nil {
		status, code := errorCode(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Submit failed")
		}
		ws.WriteError(conn, code)
		return false
	}

	wsLog.Info().Msg("Attempt submitted")
	ws.WriteTyped(conn, ws.SubmittedResponse{Event: ws.EventSubmitted, Result: result})
	return true
}
