package bakersdozen

import "errors"

var (
	// ErrOffline is returned by mutating operations while the connection
	// monitor reports the backend as unreachable. It is synthesized before
	// any network call is attempted.
	ErrOffline = errors.New("cannot mutate records while offline")

	// ErrMissingID is returned by Update when the record carries no id.
	ErrMissingID = errors.New("record is missing an id")

	// ErrNotSignedIn is returned by auth operations that require an active
	// session.
	ErrNotSignedIn = errors.New("not signed in")
)
