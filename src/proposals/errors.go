package proposals

import "errors"

var (
	// ErrNotFound is returned when no record exists for a message id.
	ErrNotFound = errors.New("proposals: record not found")
	// ErrAlreadyExists is returned by Create when the message id is taken.
	ErrAlreadyExists = errors.New("proposals: record already exists")
	// ErrDuplicateVote marks a vote from a member who already signed.
	ErrDuplicateVote = errors.New("proposals: voter already signed")
	// ErrAlreadyFinal marks a vote on an approved or rejected record.
	ErrAlreadyFinal = errors.New("proposals: record already decided")
	// ErrStorage wraps failures reading or writing the backing store.
	ErrStorage = errors.New("proposals: storage failure")
	// ErrInvariant is returned when a record would be persisted in an inconsistent state.
	ErrInvariant = errors.New("proposals: record invariant violated")
	// ErrMalformedDocument reports a backing document that could not be decoded.
	ErrMalformedDocument = errors.New("proposals: malformed document")
	// ErrInvalidRecord reports well-formed JSON holding a record that cannot be
	// interpreted. It always comes wrapped together with ErrMalformedDocument.
	ErrInvalidRecord = errors.New("proposals: invalid record")
)

// IsIgnorable reports whether err is an expected, non-fatal vote outcome.
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateVote) ||
		errors.Is(err, ErrAlreadyFinal)
}
