package output

import (
	"context"
	"errors"
	"time"
)

// ErrNoVerificationMail means the deadline passed without a matching
// message. The phase that hit it is not retried in place; the caller may
// start a fresh session instead.
var ErrNoVerificationMail = errors.New("no verification mail arrived before the deadline")

// ErrMailSessionExpired means the persisted webmail session is absent or
// past its validity window. It is surfaced distinctly from phase
// failures so the caller can run the interactive login helper instead of
// blindly retrying.
var ErrMailSessionExpired = errors.New("webmail session is missing or expired")

// MailboxPort is the contract the engine consumes; the webmail UI client
// behind it is infrastructure.
type MailboxPort interface {
	// Authenticate restores a previously persisted webmail session.
	// false (with nil error) signals the session is absent or expired.
	Authenticate(ctx context.Context) (bool, error)

	// FindVerificationLink polls the inbox for the newest message
	// addressed to address that matches the known sender/subject
	// pattern and returns the first link matching the known URL
	// pattern. Returns ErrNoVerificationMail once deadline passes.
	FindVerificationLink(ctx context.Context, address string, deadline time.Time) (string, error)

	Close()
}
