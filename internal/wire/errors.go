package wire

import "errors"

// ErrorCode is the transport-level status carried in a response frame.
type ErrorCode int32

const (
	OK ErrorCode = iota
	FunctionNotFound
	FunctionInvalidParameterSize
	FunctionInvalidParameterType
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case FunctionNotFound:
		return "FUNCTION_NOT_FOUND"
	case FunctionInvalidParameterSize:
		return "FUNCTION_INVALID_PARAMETER_SIZE"
	case FunctionInvalidParameterType:
		return "FUNCTION_INVALID_PARAMETER_TYPE"
	default:
		return "UNKNOWN"
	}
}

// Parse-level errors. These never reach the wire; a parse failure causes
// the connection that produced it to be closed after a short linger.
var (
	ErrPackageBroken      = errors.New("wire: package broken")
	ErrTooManyParameters  = errors.New("wire: too many parameters")
	ErrInvalidMethodType  = errors.New("wire: invalid method type")
	ErrInvalidMethodName  = errors.New("wire: invalid method name")
	ErrTrailingBytes      = errors.New("wire: trailing bytes after frame")
	ErrNeedMoreData       = errors.New("wire: need more data")
)

// MaxMethodNameLen is the maximum number of bytes a method name may occupy
// on the wire, grounded on MRPC_MAX_METHOD_NAME_LEN. It is process-wide,
// mirroring that macro's compile-time scope; Configure overrides it from
// server configuration before traffic is served.
var MaxMethodNameLen = 127

// MaxParameters is the maximum number of Vals a request's parameter list
// may carry, grounded on MRPC_MAX_PARAMETER_SIZE.
var MaxParameters = 16

// Configure overrides the process-wide method-name-length and
// parameter-count limits enforced by the Parse/Encode Request/Response
// functions. Call once, before the reactor starts accepting connections;
// it is not safe to change concurrently with in-flight parsing.
func Configure(maxMethodNameLen, maxParameters int) {
	MaxMethodNameLen = maxMethodNameLen
	MaxParameters = maxParameters
}
