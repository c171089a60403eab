package rpccore

import (
	"github.com/nanorpc/nanorpc/internal/reactor"
	"github.com/nanorpc/nanorpc/internal/slab"
)

// Token is the opaque handle a worker uses to refer to a connection when it
// sends a response. It is a direct reuse of the slab package's
// generation-counted handle: a worker that sits on a stale token (because
// the connection already died) gets a clean rejection from Slab.Get rather
// than a dangling pointer.
type Token = slab.Handle

// stage tracks where a connection sits in the request/response lifecycle,
// grounded on the original's PENDING_REQUEST_OR_INDICATION / EXECUTE_RPC /
// PENDING_REPLY / CONNECTION_FAILED states.
type stage int

const (
	stagePendingRequest stage = iota
	stageExecuteRPC
	stagePendingReply
	stageConnectionFailed
)

// connRecord is the per-connection bookkeeping the slab allocator owns.
// rc is nil until the reactor delivers the connection's first event; it is
// always set by the time a response can possibly reference this record,
// since a response only exists after a request was read off rc.
type connRecord struct {
	stage      stage
	wantLength int // full frame length once known, 0 until GetPackageSize succeeds
	rc         *reactor.Connection
}

// responseTag distinguishes what the reactor should do with a drained
// response-queue entry. The original also carries a LOG tag; this runtime
// drops it; see DESIGN.md.
type responseTag int

const (
	tagReply responseTag = iota
	tagErr
	tagDone
)

// requestDescriptor is handed from the reactor to a dispatch worker.
type requestDescriptor struct {
	Token Token
	Raw   []byte
}

// responseMessage is handed from a dispatch worker back to the reactor.
type responseMessage struct {
	tag   responseTag
	token Token
	bytes []byte // populated only for tagReply
}
