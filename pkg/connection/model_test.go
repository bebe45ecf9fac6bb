package connection_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bakersdozen/bakersdozen.go/pkg/connection"
)

func TestRPCErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("fetching row: %w", &connection.RPCError{Code: connection.CodeNoRows, Message: "no rows matched"})

	assert.True(t, errors.Is(err, &connection.RPCError{Code: connection.CodeNoRows}))
	assert.False(t, errors.Is(err, &connection.RPCError{Code: connection.CodeAuthFailed}))

	// A zero code matches any RPC error.
	assert.True(t, errors.Is(err, &connection.RPCError{}))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, connection.IsNoRows(&connection.RPCError{Code: connection.CodeNoRows}))
	assert.False(t, connection.IsNoRows(&connection.RPCError{Code: connection.CodeInternalError}))
	assert.False(t, connection.IsNoRows(errors.New("no rows matched")))
	assert.False(t, connection.IsNoRows(nil))
}

func TestIsPermissionDenied(t *testing.T) {
	assert.True(t, connection.IsPermissionDenied(&connection.RPCError{Code: connection.CodePermissionDenied}))
	assert.False(t, connection.IsPermissionDenied(&connection.RPCError{Code: connection.CodeNoRows}))
	assert.False(t, connection.IsPermissionDenied(nil))
}
