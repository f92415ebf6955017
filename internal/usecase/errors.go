package usecase

import "fmt"

type ErrorCode string

const (
	// ErrorUpstream marks an unexpected directory or message-record response.
	ErrorUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrorTransport marks a chat API failure other than the recognized
	// deleted-reply-target case.
	ErrorTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrorInternal marks failures in state the relay owns, e.g. the session store.
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a fatal per-message failure. It aborts the remaining pipeline for
// that message; the containment boundary reports it and never re-raises.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error

	// NotifySender requests the generic error reply to the sender in
	// addition to the operator-channel report. Set for failures before the
	// pipeline proper starts; once relaying has begun the sender stays
	// unanswered so a half-delivered message is distinguishable.
	NotifySender bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func newNotifyError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err, NotifySender: true}
}
