package core

import "errors"

// Error codes for session errors.
const (
	ErrCodeNotConnected      = "not_connected"
	ErrCodeAlreadyConnecting = "already_connecting"
	ErrCodeAlreadyJoined     = "already_joined"
	ErrCodeCommandError      = "command_error"
	ErrCodeConnectionError   = "connection_error"
	ErrCodeProtocolError     = "protocol_error"
	ErrCodeNoSuchChannel     = "no_such_channel"
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnecting = errors.New("already connecting")
	ErrAlreadyJoined     = errors.New("already joined")
	ErrNoSuchChannel     = errors.New("no such channel")
)

// SessionError wraps a code and human-readable message. For already_joined
// it also carries the ID of the existing channel so callers can switch
// focus to it.
type SessionError struct {
	Code      string
	Message   string
	ChannelID string
}

func (e *SessionError) Error() string {
	return e.Message
}

// Unwrap maps coded errors onto their sentinels so callers can use errors.Is.
func (e *SessionError) Unwrap() error {
	switch e.Code {
	case ErrCodeNotConnected:
		return ErrNotConnected
	case ErrCodeAlreadyConnecting:
		return ErrAlreadyConnecting
	case ErrCodeAlreadyJoined:
		return ErrAlreadyJoined
	case ErrCodeNoSuchChannel:
		return ErrNoSuchChannel
	default:
		return nil
	}
}

func sessionError(code, msg string) *SessionError {
	return &SessionError{Code: code, Message: msg}
}
