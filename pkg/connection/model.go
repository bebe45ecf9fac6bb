package connection

// RPCError is an error reported by the backend as part of an RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (r *RPCError) Error() string {
	return r.Message
}

func (r *RPCError) Is(target error) bool {
	if target == nil {
		return r == nil
	}

	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return t.Code == 0 || t.Code == r.Code
}

// Application-level error codes that are part of the wire contract.
// Negative codes are reserved for protocol-level failures.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeNoRows reports that a single-row query matched zero rows.
	// Callers must map it to a none-found result, never raise it.
	CodeNoRows = 1001
	// CodeAuthFailed reports invalid credentials or a rejected token.
	CodeAuthFailed = 1002
	// CodePermissionDenied reports a row access policy rejection.
	CodePermissionDenied = 1003
)

// IsNoRows reports whether err is the backend's distinguished
// "no rows matched a single-row query" condition.
func IsNoRows(err error) bool {
	rpcErr, ok := err.(*RPCError)
	return ok && rpcErr.Code == CodeNoRows
}

// IsPermissionDenied reports whether err is an access policy rejection.
func IsPermissionDenied(err error) bool {
	rpcErr, ok := err.(*RPCError)
	return ok && rpcErr.Code == CodePermissionDenied
}

// RPCRequest represents an outgoing RPC request.
type RPCRequest struct {
	ID     string `json:"id"`
	Method string `json:"method,omitempty"`
	Params []any  `json:"params,omitempty"`
}

// RPCResponse represents an incoming RPC response.
// Messages without an ID are live notifications, not responses.
type RPCResponse[T any] struct {
	ID     string    `json:"id,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
	Result *T        `json:"result,omitempty"`
}

// RPCFunction names a method of the Bakers Dozen RPC protocol.
type RPCFunction string

const (
	Ping          RPCFunction = "ping"
	Select        RPCFunction = "select"
	Insert        RPCFunction = "insert"
	Update        RPCFunction = "update"
	Upsert        RPCFunction = "upsert"
	Delete        RPCFunction = "delete"
	ViewSelect    RPCFunction = "view"
	Live          RPCFunction = "live"
	Kill          RPCFunction = "kill"
	SignUp        RPCFunction = "signup"
	SignIn        RPCFunction = "signin"
	SignOut       RPCFunction = "signout"
	Authenticate  RPCFunction = "authenticate"
	Info          RPCFunction = "info"
	UpdateUser    RPCFunction = "update_user"
	ResetPassword RPCFunction = "reset_password"
)
