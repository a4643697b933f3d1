package session

import "errors"

var (
	// ErrSessionClosed is returned by operations on a session that was
	// closed or torn down after the credential was rejected.
	ErrSessionClosed = errors.New("session closed")

	// ErrAlreadyStamped is returned when a PDF already has a stamp layer
	// and Force is off.
	ErrAlreadyStamped = errors.New("document is already stamped")

	// ErrNoBatch is returned when delivering before compositing succeeded.
	ErrNoBatch = errors.New("no stamped batch")

	// ErrSubmissionDisabled is returned by Submit without a Submitter.
	ErrSubmissionDisabled = errors.New("task submission is not configured")
)
