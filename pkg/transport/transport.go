// Package transport sends encoded frames to the remote consumer.
//
// A Transport opens Sessions. A Session sends one frame at a time and never
// buffers more than the frame being sent. Errors wrapped in SessionError end
// the session only; any other error is fatal to the caller.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/embassist/esp32s3-remote-mic/pkg/link"
)

// Transport opens sessions to a single destination.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one open destination pairing.
type Session interface {
	// ID identifies the session in logs and stream metadata.
	ID() string
	// Send sends one encoded frame, blocking until it's handed off.
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// ErrClosed is returned when using a closed session.
var ErrClosed = errors.New("session closed")

// SessionError reports a fault which ends the current session. The
// transport may be opened again.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session lost on %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// SessionLost wraps err as a SessionError.
func SessionLost(op string, err error) error {
	return &SessionError{Op: op, Err: err}
}

// IsSessionLost reports whether err only ends the session.
func IsSessionLost(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// NewSessionID generates a session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// WaitLink blocks until the link has an address. A nil reader means the
// transport doesn't depend on a supervised link.
func WaitLink(ctx context.Context, r link.Reader) error {
	if r == nil {
		return nil
	}
	return link.WaitFor(ctx, r, link.AddressAcquired)
}
