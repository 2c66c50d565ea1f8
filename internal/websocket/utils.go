package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// ErrMalformed is returned by ReadMessage for frames that are not JSON. The
// connection is still usable.
var ErrMalformed = errors.New("malformed message")

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code response.ErrCode) error {
	return WriteTyped(conn, ErrorResponse{
		Event:   EventError,
		Code:    code,
		Message: response.GetMessage(code),
	})
}

// ReadMessage reads one text frame with a read deadline and returns its
// action alongside the raw bytes for a second, typed decode.
func ReadMessage(conn *websocket.Conn) (Action, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", raw, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env.Action, raw, nil
}
