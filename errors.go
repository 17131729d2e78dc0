package glmtools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for glmtools. Use errors.Is to check.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrTimeout      = errors.New("tool execution timeout")
	ErrValidation   = errors.New("validation failed")
	ErrShutdown     = errors.New("registry is shutting down")
)

// RegistrationError reports a malformed tool definition. It is returned at startup by Describe,
// NewTool, Register and BuildRegistry and is meant to stop initialization.
type RegistrationError struct {
	Tool   string
	Param  string // empty when the problem is with the tool itself
	Reason string
}

func (e *RegistrationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("register tool %q: parameter `%s`: %s", e.Tool, e.Param, e.Reason)
	}
	return fmt.Sprintf("register tool %q: %s", e.Tool, e.Reason)
}

// ClientError is an error that should be sent back to the model for self-correction
// (e.g. missing argument, wrong type, unexpected parameter).
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents a failure inside the tool body (I/O error, subprocess failure, panic).
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "tool execution failed"
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

// IsRegistrationError returns true if err is or wraps a RegistrationError.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}

// FormatDiagnostic renders err as the text handed back to the model. Panics include the
// goroutine stack captured at recovery.
func FormatDiagnostic(err error) string {
	if err == nil {
		return ""
	}
	var se *SystemError
	if !errors.As(err, &se) || se.Err == nil {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(se.Error())
	b.WriteString(": ")
	b.WriteString(se.Err.Error())
	var pe *panicError
	if errors.As(se.Err, &pe) && len(pe.stack) > 0 {
		b.WriteString("\n\n")
		b.Write(pe.stack)
	}
	return strings.TrimRight(b.String(), "\n")
}

// panicError wraps a recovered panic value for SystemError.
type panicError struct {
	p     any
	stack []byte
}

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}

// notFoundText is the model-facing reply for an unregistered tool name.
func notFoundText(name string) string {
	return fmt.Sprintf("Tool `%s` not found. Please use a provided tool.", name)
}

// wrapDecodeError returns a ClientError for argument decoding failures.
func wrapDecodeError(err error) error {
	return &ClientError{Reason: "decode arguments: " + err.Error(), Err: ErrValidation}
}

// wrapHandlerError passes through ClientError; wraps other errors as SystemError.
func wrapHandlerError(err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) {
		return err
	}
	return &SystemError{Err: err}
}
