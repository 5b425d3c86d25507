package toolbridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for toolbridge. Use errors.Is to check.
var (
	ErrNoMessages       = errors.New("no message found in input")
	ErrNotAssistant     = errors.New("last message is not an assistant message")
	ErrNoToolCalls      = errors.New("last message has no tool calls")
	ErrUnsupportedState = errors.New("unsupported conversation state")
	ErrValidation       = errors.New("validation failed")
)

// TurnError reports conversation state the dispatcher cannot work on. It is
// never turned into a ToolMessage because there is no call id to attach it to.
type TurnError struct {
	Reason string
	Err    error // one of the Err* sentinels above
}

func (e *TurnError) Error() string {
	if e.Reason == "" {
		return "invalid turn: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid turn: %v: %s", e.Err, e.Reason)
}

func (e *TurnError) Unwrap() error { return e.Err }

// Interrupt is the cooperative suspension signal. A tool server, session
// middleware or hook returns it to ask the whole call chain to pause. It is
// never caught by an ErrorPolicy and always reaches the caller of Dispatch
// unwrapped.
type Interrupt struct {
	Value any // payload for whoever resumes the run
}

func (e *Interrupt) Error() string {
	if e.Value == nil {
		return "interrupt"
	}
	return fmt.Sprintf("interrupt: %v", e.Value)
}

// AsInterrupt returns the Interrupt in err's chain, if any.
func AsInterrupt(err error) (*Interrupt, bool) {
	var in *Interrupt
	if errors.As(err, &in) {
		return in, true
	}
	return nil, false
}

// IsInterrupt reports whether err is or wraps an Interrupt.
func IsInterrupt(err error) bool {
	_, ok := AsInterrupt(err)
	return ok
}

// ClientError is an error that should be sent back to the LLM for self-correction
// (e.g. arguments that do not match the tool's schema).
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an infrastructure failure (panic inside a session,
// broken transport). The LLM should not see the underlying error message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// panicError wraps a recovered panic value for SystemError.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}

// Unwrap exposes a panic value that is itself an error, so an Interrupt
// raised by panic still propagates.
func (e *panicError) Unwrap() error {
	err, _ := e.p.(error)
	return err
}
