package agents

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Code classifies a capability failure so the scheduler and callers can
// decide retry-worthiness without string matching.
type Code string

const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNetwork      Code = "NETWORK_ERROR"
	CodeParsing      Code = "PARSING_ERROR"
	CodeLLM          Code = "LLM_ERROR"
	CodeTimeout      Code = "TIMEOUT_ERROR"
	CodeUnknown      Code = "UNKNOWN_ERROR"
)

// AgentError is the only error type that crosses an agent boundary.
type AgentError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AgentError) Unwrap() error { return e.Cause }

// Retryable reports whether a repeat attempt could plausibly succeed.
// Invalid input never improves on retry; everything else is bounded-retryable
// (a parsing failure may get better-formed text on the next call).
func (e *AgentError) Retryable() bool { return e.Code != CodeInvalidInput }

func Errf(code Code, format string, args ...any) *AgentError {
	return &AgentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, msg string, cause error) *AgentError {
	return &AgentError{Code: code, Message: msg, Cause: cause}
}

// Classify tags an arbitrary error with a taxonomy code. Already-classified
// errors pass through unchanged.
func Classify(err error) *AgentError {
	if err == nil {
		return nil
	}
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTimeout, "deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(CodeTimeout, "cancelled by caller", err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return Wrap(CodeTimeout, "network timeout", err)
		}
		return Wrap(CodeNetwork, "network failure", err)
	}
	return Wrap(CodeUnknown, "unclassified failure", err)
}
