// Package dispatch implements the service façade (C7): a method table plus
// a worker pool that pulls request descriptors off the RPC core and turns
// handler results back into responses. It never touches a socket directly.
package dispatch

import (
	"sync"
	"time"

	"github.com/nanorpc/nanorpc/internal/logger"
	"github.com/nanorpc/nanorpc/internal/metrics"
	"github.com/nanorpc/nanorpc/internal/rpccore"
	"github.com/nanorpc/nanorpc/internal/wire"
)

// Handler executes a registered method. svc is passed back so a handler
// can read its own service-level user data via svc.UserData(); udata is
// the per-method value given to Add. A FunctionType call's result is sent
// back to the caller only when ec == wire.OK, in which case result must be
// non-nil.
type Handler func(svc *Service, req *wire.Request, udata any) (ec wire.ErrorCode, result *wire.Val)

// Service registers methods and runs a worker pool over a Core's request
// queue, grounded on the original's mrpc_service_t.
type Service struct {
	core *rpccore.Core
	td   *table

	udata       any
	spinRetries int
	minSleep    time.Duration
	maxSleep    time.Duration

	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// SetMetrics attaches m so subsequent RunOnce calls record worker
// occupancy and frame/response outcomes. Call before RunRemote/Run; m may
// be nil to disable metrics (the default).
func (svc *Service) SetMetrics(m *metrics.Metrics) {
	svc.metrics = m
}

// table is a thin mutex-guarded wrapper: methodTable itself is replaced
// wholesale on growth (rehash returns a new table). Add holds the write
// lock for the whole insert, including any rehash; lookups take the read
// lock.
type table struct {
	mu  sync.RWMutex
	tbl *methodTable
}

// NewService creates a Service bound to core. initialCapacity sizes the
// method table's first allocation (rounded up to a power of two);
// spinRetries/minSleep/maxSleep are the adaptive backoff bounds handed to
// every worker's blocking dequeue; udata is an opaque value handlers can
// retrieve via Service.UserData.
func NewService(core *rpccore.Core, initialCapacity, spinRetries int, minSleep, maxSleep time.Duration, udata any) *Service {
	return &Service{
		core:        core,
		td:          &table{tbl: newMethodTable(initialCapacity)},
		udata:       udata,
		spinRetries: spinRetries,
		minSleep:    minSleep,
		maxSleep:    maxSleep,
	}
}

// UserData returns the opaque value passed to NewService.
func (svc *Service) UserData() any {
	return svc.udata
}

// Add registers name with cb and udata. It fails if name is empty, longer
// than the wire format's method-name limit, or already registered.
func (svc *Service) Add(name string, cb Handler, udata any) error {
	svc.td.mu.Lock()
	defer svc.td.mu.Unlock()

	next, err := svc.td.tbl.insert(name, cb, udata)
	svc.td.tbl = next
	return err
}

func (svc *Service) lookup(name string) (tableEntry, bool) {
	svc.td.mu.RLock()
	defer svc.td.mu.RUnlock()
	return svc.td.tbl.lookup(name)
}

// RunRemote spawns n worker goroutines, each pulling request descriptors
// off the core's request queue until Quit wakes them.
func (svc *Service) RunRemote(n int) {
	svc.wg.Add(n)
	for i := 0; i < n; i++ {
		go func(workerID int) {
			defer svc.wg.Done()
			for svc.RunOnce() {
			}
			logger.Debug("dispatch worker exiting", logger.WorkerID(workerID))
		}(i)
	}
}

// RunOnce blocks for a single request, executes it, and enqueues the
// response. It returns false when the core was woken (Quit/Close) instead
// of delivering a request, which is the signal a worker loop uses to exit.
func (svc *Service) RunOnce() bool {
	token, raw, ok := svc.core.RequestRecv(svc.spinRetries, svc.minSleep, svc.maxSleep)
	if !ok {
		return false
	}
	svc.metrics.WorkerStarted()
	svc.handle(token, raw)
	svc.metrics.WorkerStopped()
	return true
}

// Run drives RunOnce inline until the core is woken, for single-threaded
// callers that don't want a worker pool.
func (svc *Service) Run() {
	for svc.RunOnce() {
	}
}

// Quit wakes every blocked worker and waits for RunRemote's goroutines to
// return.
func (svc *Service) Quit() {
	svc.core.StopWorkers()
	svc.wg.Wait()
}

func (svc *Service) handle(token rpccore.Token, raw []byte) {
	req, _, err := wire.ParseRequest(raw)
	if err != nil {
		logger.Warn("dropping unparseable request", logger.Err(err))
		svc.metrics.FrameRejected()
		svc.core.ResponseFail(token)
		return
	}
	svc.metrics.FrameParsed()

	entry, found := svc.lookup(req.Method)
	if !found {
		svc.respond(token, req, wire.FunctionNotFound, nil)
		return
	}

	ec, result := entry.cb(svc, req, entry.udata)
	svc.respond(token, req, ec, result)
}

func (svc *Service) respond(token rpccore.Token, req *wire.Request, ec wire.ErrorCode, result *wire.Val) {
	if req.MethodType == wire.NotificationType {
		svc.core.ResponseDone(token)
		return
	}
	svc.metrics.ResponseSent(ec.String())
	if ec != wire.OK {
		result = nil
	}

	resp := &wire.Response{
		MethodType: wire.FunctionType,
		TxID:       req.TxID,
		Method:     req.Method,
		ErrorCode:  ec,
		Result:     result,
	}
	frame, err := wire.EncodeResponse(resp)
	if err != nil {
		logger.Warn("failed to encode response, closing connection",
			logger.Method(req.Method), logger.Err(err))
		svc.core.ResponseFail(token)
		return
	}
	svc.core.ResponseSend(token, frame)
}
