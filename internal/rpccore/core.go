// Package rpccore implements the connection-level RPC runtime (C6): it owns
// the reactor, the connection slab, and the request/response queues that
// hand work off to the dispatch worker pool. It knows the wire frame format
// and the per-connection state machine but nothing about method names or
// handler functions — that lives in pkg/dispatch.
package rpccore

import (
	"context"
	"fmt"
	"time"

	"github.com/nanorpc/nanorpc/internal/config"
	"github.com/nanorpc/nanorpc/internal/logger"
	"github.com/nanorpc/nanorpc/internal/metrics"
	"github.com/nanorpc/nanorpc/internal/queue"
	"github.com/nanorpc/nanorpc/internal/reactor"
	"github.com/nanorpc/nanorpc/internal/slab"
	"github.com/nanorpc/nanorpc/internal/wire"
)

// Core is the RPC connection runtime: accept loop, frame boundary
// detection, and the response-queue drain that turns worker output back
// into bytes on the wire. It is not safe for concurrent use except through
// its documented thread-safe entry points (RequestRecv, RequestTryRecv,
// ResponseSend, ResponseDone, WriteLog, Interrupt).
type Core struct {
	cfg *config.ServerConfig

	reactor   *reactor.Reactor
	connSlab  *slab.Slab[connRecord]
	reqQueue  *queue.Queue[*requestDescriptor]
	resQueue  *queue.Queue[*responseMessage]
	idleTimer *reactor.Connection

	metrics *metrics.Metrics
}

// SetMetrics attaches m so subsequent Poll/Run calls record the idle
// timer's response-queue drain time and queue depth. It is safe to call at most once, before Run or
// the first Poll; m may be nil to disable metrics (the default).
func (core *Core) SetMetrics(m *metrics.Metrics) {
	core.metrics = m
}

// NewCore builds a Core bound to cfg.ListenAddr. The reactor is created but
// not yet running; call Run or repeatedly call Poll to drive it.
func NewCore(cfg *config.ServerConfig) (*Core, error) {
	// cfg.MaxMethodNameLen leaves room for a terminating NUL, as
	// MRPC_MAX_METHOD_NAME_LEN does; the longest name on the wire is one
	// byte shorter.
	wire.Configure(cfg.MaxMethodNameLen-1, cfg.MaxParameterCount)

	core := &Core{
		cfg:      cfg,
		connSlab: slab.New[connRecord](cfg.ReserveMempool),
		reqQueue: queue.New[*requestDescriptor](),
		resQueue: queue.New[*responseMessage](),
	}

	rct, err := reactor.New(cfg.ListenAddr, core.onAccept)
	if err != nil {
		return nil, fmt.Errorf("rpccore: init: %w", err)
	}
	core.reactor = rct
	core.idleTimer = rct.AddTimer(core.idleDrain, nil, cfg.PollTimeout)

	return core, nil
}

// Run drives the reactor until Interrupt is called or an unrecoverable
// error occurs.
func (core *Core) Run() error {
	_, err := core.reactor.Run(core.cfg.PollTimeout)
	return err
}

// Poll runs a single reactor tick, for callers that want to interleave the
// RPC core with their own event loop.
func (core *Core) Poll() (reactor.Outcome, error) {
	return core.reactor.Poll(core.cfg.PollTimeout)
}

// Interrupt wakes a blocked Run/Poll call from any goroutine.
func (core *Core) Interrupt() {
	core.reactor.Interrupt()
}

// ListenAddr returns the address the core's listen socket is bound to,
// useful when cfg.ListenAddr was a ":0" wildcard port.
func (core *Core) ListenAddr() string {
	return core.reactor.ListenAddr()
}

// StopWorkers wakes every blocked RequestRecv call, the signal a dispatch
// worker pool's loop uses to exit. It does not touch the reactor or the
// response queue, so in-flight responses can still drain if the reactor is
// still being polled.
func (core *Core) StopWorkers() {
	core.reqQueue.WakeAll()
}

// Close releases the reactor's sockets and wakes any blocked worker. It
// does not wait for in-flight requests to drain; callers should Quit their
// dispatch service first if that matters.
func (core *Core) Close() error {
	core.StopWorkers()
	core.resQueue.WakeAll()
	return core.reactor.Close()
}

// RequestRecv blocks until a request descriptor is available or the core is
// closed, in which case ok is false. It is the worker-side counterpart to
// the reactor's doRead.
func (core *Core) RequestRecv(spinRetries int, minSleep, maxSleep time.Duration) (token Token, raw []byte, ok bool) {
	req, woken := core.reqQueue.DequeueBlocking(spinRetries, minSleep, maxSleep)
	if woken {
		return Token{}, nil, false
	}
	return req.Token, req.Raw, true
}

// RequestTryRecv is the non-blocking counterpart to RequestRecv.
func (core *Core) RequestTryRecv() (token Token, raw []byte, ok bool) {
	req, ok := core.reqQueue.DequeueTry()
	if !ok {
		return Token{}, nil, false
	}
	return req.Token, req.Raw, true
}

// ResponseSend enqueues a serialized response frame to be written back to
// token's connection on the next reactor tick.
func (core *Core) ResponseSend(token Token, frame []byte) {
	core.resQueue.Enqueue(&responseMessage{tag: tagReply, token: token, bytes: frame})
}

// ResponseDone enqueues a DONE marker for a NOTIFICATION call: the
// connection is stopped without ever writing a reply.
func (core *Core) ResponseDone(token Token) {
	core.resQueue.Enqueue(&responseMessage{tag: tagDone, token: token})
}

// ResponseFail enqueues an ERR marker for a request that could not be
// turned into any response at all (the frame boundary was valid but its
// content did not parse as a request, or the response could not be
// encoded). No reply is written; the connection lingers for
// IdleCloseTimeout and is then closed.
func (core *Core) ResponseFail(token Token) {
	core.resQueue.Enqueue(&responseMessage{tag: tagErr, token: token})
}

// WriteLog is the Go-native resolution of the original's file-backed
// write_log: slog's handler already serializes concurrent writes, so this
// calls straight into the structured logger instead of funneling through
// the response queue.
func (core *Core) WriteLog(ctx context.Context, msg string, args ...any) {
	logger.InfoCtx(ctx, msg, args...)
}
