package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected           = errors.New("session not connected")
	ErrConnectionTimeout      = errors.New("realtime connection timed out")
	ErrEventTimeout           = errors.New("timed out waiting for realtime event")
	ErrListenerStopped        = errors.New("realtime listener stopped")
	ErrTurnInProgress         = errors.New("a turn is already in progress for this session")
	ErrToolArgumentsMalformed = errors.New("tool arguments are not a JSON object")
	ErrSessionClosed          = errors.New("session closed")
	ErrSessionExists          = errors.New("session already registered")
	ErrEmptyInput             = errors.New("turn input is empty")
)

// UnknownToolError is returned when the engine asks for a tool that is not registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown tool: %s", e.Name)
}

// UpstreamError carries an `error` event sent by the speech engine.
type UpstreamError struct {
	Type    string
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime error %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("realtime error %s: %s", e.Type, e.Message)
}
