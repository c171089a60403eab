package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the RPC runtime.
// Use these keys consistently so log lines can be aggregated and queried.
const (
	// ========================================================================
	// Correlation
	// ========================================================================
	KeyTraceID      = "trace_id"      // correlation id assigned per accepted connection
	KeyConnectionID = "connection_id" // reactor connection identifier
	KeyTxID         = "tx_id"         // RPC transaction id echoed between request/response

	// ========================================================================
	// Method dispatch
	// ========================================================================
	KeyMethod     = "method"      // method name being invoked
	KeyMethodType = "method_type" // FUNCTION or NOTIFICATION
	KeyParamCount = "param_count" // number of parameters decoded
	KeyParamType  = "param_type"  // Val tag: uint, int, varchar

	// ========================================================================
	// Client / network identification
	// ========================================================================
	KeyClientIP   = "client_ip"   // client IP address
	KeyClientPort = "client_port" // client source port
	KeyFD         = "fd"          // underlying socket file descriptor

	// ========================================================================
	// Reactor & event loop
	// ========================================================================
	KeyEvent       = "event"        // event bitmask serviced this tick
	KeyPendingEv   = "pending_event"// pending event bitmask on a connection
	KeyTimeoutMs   = "timeout_ms"   // poll timeout used for this tick
	KeyConnCount   = "conn_count"   // number of live connections

	// ========================================================================
	// Queues & dispatch workers
	// ========================================================================
	KeyQueueDepth = "queue_depth" // items currently queued
	KeyWorkerID   = "worker_id"   // dispatch worker index
	KeySpinCount  = "spin_count"  // busy-spin retries before sleeping
	KeySleepMs    = "sleep_ms"    // backoff sleep duration

	// ========================================================================
	// Slab allocator
	// ========================================================================
	KeySlabPages = "slab_pages" // number of grown pages
	KeySlabObjSz = "slab_obj_size"
	KeySlabFree  = "slab_free_count"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // mrpc error code
	KeyFrameSize  = "frame_size"  // total serialized frame length in bytes
)

// TraceID returns a slog.Attr for the connection correlation id.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// ConnectionID returns a slog.Attr for the reactor connection identifier.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// TxID returns a slog.Attr for the RPC transaction id.
func TxID(id uint32) slog.Attr {
	return slog.Uint64(KeyTxID, uint64(id))
}

// Method returns a slog.Attr for the method name.
func Method(name string) slog.Attr {
	return slog.String(KeyMethod, name)
}

// MethodType returns a slog.Attr for the method type (function/notification).
func MethodType(t string) slog.Attr {
	return slog.String(KeyMethodType, t)
}

// ParamCount returns a slog.Attr for the number of decoded parameters.
func ParamCount(n int) slog.Attr {
	return slog.Int(KeyParamCount, n)
}

// ClientIP returns a slog.Attr for the client IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for the client source port.
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// FD returns a slog.Attr for a raw socket file descriptor.
func FD(fd int) slog.Attr {
	return slog.Int(KeyFD, fd)
}

// Event returns a slog.Attr for an event bitmask serviced this tick.
func Event(mask int) slog.Attr {
	return slog.Int(KeyEvent, mask)
}

// PendingEvent returns a slog.Attr for a connection's pending event bitmask.
func PendingEvent(mask int) slog.Attr {
	return slog.Int(KeyPendingEv, mask)
}

// ConnCount returns a slog.Attr for the number of live connections.
func ConnCount(n int) slog.Attr {
	return slog.Int(KeyConnCount, n)
}

// QueueDepth returns a slog.Attr for the number of items currently queued.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// WorkerID returns a slog.Attr for a dispatch worker index.
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}

// SpinCount returns a slog.Attr for busy-spin retries before sleeping.
func SpinCount(n int) slog.Attr {
	return slog.Int(KeySpinCount, n)
}

// SleepMs returns a slog.Attr for a backoff sleep duration in milliseconds.
func SleepMs(ms int) slog.Attr {
	return slog.Int(KeySleepMs, ms)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr when err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for an mrpc error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// FrameSize returns a slog.Attr for the total serialized frame length.
func FrameSize(n int) slog.Attr {
	return slog.Int(KeyFrameSize, n)
}
