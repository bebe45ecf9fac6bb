package connection

import (
	"errors"
	"time"
)

const (
	// RequestIDLength is the size of the correlation id sent on each request.
	RequestIDLength = 16
	// CloseMessageCode identifies the message id for a close request.
	CloseMessageCode = 1000
	// DefaultTimeout bounds how long Send waits for the RPC response.
	DefaultTimeout = 30 * time.Second
)

var (
	ErrIDInUse       = errors.New("id already in use")
	ErrTimeout       = errors.New("timeout")
	ErrClosed        = errors.New("connection closed")
	ErrNotConnected  = errors.New("not connected")
	ErrNoBaseURL     = errors.New("base url not set")
	ErrNoMarshaler   = errors.New("marshaler is not set")
	ErrNoUnmarshaler = errors.New("unmarshaler is not set")
)
