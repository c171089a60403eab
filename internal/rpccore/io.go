package rpccore

import (
	"errors"
	"net"
	"time"

	"github.com/nanorpc/nanorpc/internal/logger"
	"github.com/nanorpc/nanorpc/internal/reactor"
	"github.com/nanorpc/nanorpc/internal/slab"
	"github.com/nanorpc/nanorpc/internal/wire"
)

const readChunk = 4096

// onAccept is the reactor's AcceptFunc: it allocates a connection record
// and hands back the callback the reactor will invoke for every subsequent
// event on this socket.
func (core *Core) onAccept(conn net.Conn) (reactor.Callback, any, reactor.Event) {
	handle, rec := core.connSlab.Alloc()
	rec.stage = stagePendingRequest

	logger.Debug("connection accepted", logger.ClientIP(conn.RemoteAddr().String()))

	return core.onConnEvent, handle, reactor.EvRead
}

// onConnEvent dispatches a single reactor event to the connection record
// identified by rc.UserData. It is invoked only from the reactor goroutine.
func (core *Core) onConnEvent(ev reactor.Event, r *reactor.Reactor, rc *reactor.Connection) {
	handle, _ := rc.UserData.(slab.Handle)
	rec, ok := core.connSlab.Get(handle)
	if !ok {
		switch {
		case rc.Pending&reactor.EvLinger != 0:
			logger.Debug("linger expired, closing connection")
		case rc.Pending&reactor.EvLingerSilent != 0:
			// no log: the close was already logged when it was armed.
		}
		r.Stop(rc)
		return
	}
	if rec.rc == nil {
		rec.rc = rc
	}

	if ev.IsError() {
		logger.Warn("connection transport error", logger.Event(int(ev)))
		core.dropConnection(r, rc, handle)
		return
	}

	if ev&reactor.EvEOF != 0 {
		if rec.stage == stagePendingReply {
			// The original flags CONNECTION_FAILED here rather than
			// closing immediately: the reply is still in flight in the
			// out-buffer and gets one more chance to drain. Whatever is
			// still unsent after that attempt is dropped with the connection.
			rec.stage = stageConnectionFailed
			core.doWrite(r, rc, handle, rec)
		}
		if _, live := core.connSlab.Get(handle); live {
			core.dropConnection(r, rc, handle)
		}
		return
	}

	if ev&reactor.EvRead != 0 {
		core.doRead(r, rc, handle, rec)
	}
	if ev&reactor.EvWrite != 0 {
		core.doWrite(r, rc, handle, rec)
	}
}

func (core *Core) dropConnection(r *reactor.Reactor, rc *reactor.Connection, handle Token) {
	core.connSlab.Free(handle)
	r.Stop(rc)
}

// doRead implements the PENDING_REQUEST leg of the connection state
// machine: accumulate bytes until a full frame is known to be present,
// then hand it to a dispatch worker and stop polling for more input until
// the reply is ready.
func (core *Core) doRead(r *reactor.Reactor, rc *reactor.Connection, handle Token, rec *connRecord) {
	if rec.stage != stagePendingRequest {
		// A peer that keeps sending while its previous request is still
		// being executed or replied to has violated the one-outstanding-
		// call-per-connection contract.
		rec.stage = stageConnectionFailed
		core.dropConnection(r, rc, handle)
		return
	}

	buf := make([]byte, readChunk)
	n, err := rc.Read(buf)
	if err != nil {
		if errors.Is(err, reactor.ErrWouldBlock) {
			return
		}
		core.dropConnection(r, rc, handle)
		return
	}
	if n == 0 {
		core.dropConnection(r, rc, handle)
		return
	}
	rc.In.Produce(buf[:n])

	if rec.wantLength == 0 {
		size, err := wire.GetPackageSize(rc.In.Peek())
		if err != nil {
			if errors.Is(err, wire.ErrNeedMoreData) {
				return
			}
			logger.Warn("malformed frame prefix, closing connection", logger.Err(err))
			core.metrics.FrameRejected()
			core.dropConnection(r, rc, handle)
			return
		}
		rec.wantLength = size
	}

	readable := rc.In.Readable()
	if readable < rec.wantLength {
		return
	}
	if readable > rec.wantLength {
		logger.Warn("trailing bytes past frame boundary, closing connection")
		core.metrics.FrameRejected()
		core.dropConnection(r, rc, handle)
		return
	}

	raw := append([]byte(nil), rc.In.Consume(rec.wantLength)...)
	rec.wantLength = 0
	rec.stage = stageExecuteRPC
	core.reqQueue.Enqueue(&requestDescriptor{Token: handle, Raw: raw})

	// Stop reading until the worker produces a response; mirrors the
	// original posting NET_EV_IDLE in place of its prior READ interest.
	_ = r.Rearm(rc, reactor.EvIdle)
}

// doWrite implements the PENDING_REPLY leg: drain the out-buffer and, once
// empty, arm the connection for a delayed close rather than tearing it down
// immediately, matching the original's timeout-after-reply behavior.
func (core *Core) doWrite(r *reactor.Reactor, rc *reactor.Connection, handle Token, rec *connRecord) {
	if rec.stage != stagePendingReply && rec.stage != stageConnectionFailed {
		return
	}

	n, err := rc.Write(rc.Out.Peek())
	if err != nil {
		if errors.Is(err, reactor.ErrWouldBlock) {
			return
		}
		core.dropConnection(r, rc, handle)
		return
	}
	rc.Out.Consume(n)

	if rc.Out.Readable() == 0 {
		core.connSlab.Free(handle)
		logger.Debug("reply flushed, lingering before close",
			logger.DurationMs(float64(core.cfg.IdleCloseTimeout.Milliseconds())))
		r.Linger(rc, core.cfg.IdleCloseTimeout, reactor.EvLinger)
	}
}

// idleDrain is the reactor timer callback that periodically empties the
// response queue, translating worker output into out-buffer writes and
// connection-state transitions. It re-arms itself for the next tick,
// mirroring the original's mrpc_on_poll resetting conn->timeout on return.
func (core *Core) idleDrain(ev reactor.Event, r *reactor.Reactor, timer *reactor.Connection) {
	start := time.Now()

	for i := 0; i < core.cfg.OutbandQueueSize; i++ {
		msg, ok := core.resQueue.DequeueTry()
		if !ok {
			break
		}
		core.applyResponse(r, msg)
	}
	timer.Timeout = core.cfg.PollTimeout

	core.metrics.ObserveTick(time.Since(start).Seconds())
	core.metrics.SetRequestQueueDepth(core.reqQueue.Len())
	core.metrics.SetResponseQueueDepth(core.resQueue.Len())
}

func (core *Core) applyResponse(r *reactor.Reactor, msg *responseMessage) {
	rec, ok := core.connSlab.Get(msg.token)
	if !ok || rec.rc == nil {
		// Connection already gone (client disconnected before the reply
		// was ready); the response is simply dropped.
		return
	}

	conn := rec.rc

	switch msg.tag {
	case tagReply:
		conn.Out.Produce(msg.bytes)
		rec.stage = stagePendingReply
		_ = r.Rearm(conn, reactor.EvWrite)
	case tagErr:
		// The parse failure is already logged where it was detected
		// (pkg/dispatch); the eventual close stays quiet.
		core.connSlab.Free(msg.token)
		r.Linger(conn, core.cfg.IdleCloseTimeout, reactor.EvLingerSilent)
	case tagDone:
		core.connSlab.Free(msg.token)
		conn.Post(reactor.EvClose)
	}
}
