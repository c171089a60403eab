//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

// AcceptFunc is invoked for every connection accepted on the listen
// socket and returns the callback and user data to associate with it,
// plus the initial pending event mask (almost always EvRead).
type AcceptFunc func(conn net.Conn) (cb Callback, udata any, initial Event)

// Reactor is a single-threaded epoll-backed event loop, grounded on the
// original runtime's net_server_t. It owns the listen socket, a
// loopback-bound control socket used for external wake-up, and every
// connection registered with it.
type Reactor struct {
	epfd     int
	listener net.Listener
	listenFD int

	ctrlConn *net.UDPConn
	ctrlFD   int
	ctrlAddr net.Addr

	conns  map[int]*Connection
	timers []*Connection

	accept AcceptFunc
}

// New binds a TCP listener on addr and a loopback UDP control socket,
// and wires both into a fresh epoll instance.
func New(addr string, accept AcceptFunc) (*Reactor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("reactor: listen %s: %w", addr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, errors.New("reactor: expected *net.TCPListener")
	}
	listenFD, err := rawFD(tcpLn)
	if err != nil {
		ln.Close()
		return nil, err
	}

	ctrl, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("reactor: control socket: %w", err)
	}
	ctrlFD, err := rawFD(ctrl)
	if err != nil {
		ln.Close()
		ctrl.Close()
		return nil, err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		ln.Close()
		ctrl.Close()
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	r := &Reactor{
		epfd:     epfd,
		listener: ln,
		listenFD: listenFD,
		ctrlConn: ctrl,
		ctrlFD:   ctrlFD,
		ctrlAddr: ctrl.LocalAddr(),
		conns:    make(map[int]*Connection),
		accept:   accept,
	}

	if err := r.epollAdd(listenFD, unix.EPOLLIN); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.epollAdd(ctrlFD, unix.EPOLLIN); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// rawFD extracts the underlying file descriptor from a listener or UDP
// socket without duplicating it, so the reactor and the standard library
// net package share the same descriptor.
func rawFD(sc syscall.Conn) (int, error) {
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("reactor: SyscallConn: %w", err)
	}
	var fd int
	var ctrlErr error
	if err := rc.Control(func(f uintptr) {
		fd = int(f)
	}); err != nil {
		ctrlErr = err
	}
	if ctrlErr != nil {
		return 0, fmt.Errorf("reactor: Control: %w", ctrlErr)
	}
	return fd, nil
}

func epollAddFD(epfd int, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (r *Reactor) epollAdd(fd int, events uint32) error {
	if err := epollAddFD(r.epfd, fd, events); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add fd=%d: %w", fd, err)
	}
	return nil
}

func (r *Reactor) epollMod(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

func (r *Reactor) epollDel(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Add registers an already-connected socket with the reactor. The caller
// retains no further ownership of conn: only the reactor goroutine may
// use it from this point on.
func (r *Reactor) Add(conn net.Conn, cb Callback, udata any, initial Event) (*Connection, error) {
	fd, err := netfdOf(conn)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		fd:       fd,
		conn:     conn,
		In:       NewBuffer(4096),
		Out:      NewBuffer(4096),
		Pending:  initial,
		cb:       cb,
		UserData: udata,
	}
	if err := r.epollAdd(fd, epollEventsFor(initial)); err != nil {
		return nil, err
	}
	r.conns[fd] = c
	return c, nil
}

// AddTimer registers a fd-less periodic or one-shot timer connection,
// grounded on net_timer. The reactor never selects a timer for I/O
// readiness; it only fires EvTimeout when its remaining duration lapses.
func (r *Reactor) AddTimer(cb Callback, udata any, timeout time.Duration) *Connection {
	c := &Connection{
		fd:       -1,
		Pending:  EvTimeout,
		Timeout:  timeout,
		cb:       cb,
		UserData: udata,
	}
	r.timers = append(r.timers, c)
	return c
}

// Rearm updates a connection's pending event mask and the corresponding
// epoll interest set.
func (r *Reactor) Rearm(c *Connection, ev Event) error {
	c.Pending = ev
	if c.fd < 0 {
		return nil
	}
	return r.epollMod(c.fd, epollEventsFor(ev))
}

// Linger arms c for a delayed close: ev must be EvLinger or EvLingerSilent
// and is preserved on c.Pending so the eventual timeout callback can tell
// whether the close deserves a log line. No more I/O is expected on c, so
// epoll interest is dropped; c is only reclaimed once timeout elapses or
// the peer hangs up, grounded on the original's NET_EV_LINGER conversion
// of a pending CLOSE|TIMEOUT.
func (r *Reactor) Linger(c *Connection, timeout time.Duration, ev Event) {
	c.Pending = ev
	c.Timeout = timeout
	if c.fd >= 0 {
		_ = r.epollMod(c.fd, 0)
	}
}

// Stop cancels a connection: its socket is closed and its record is
// dropped. After Stop returns, c must not be used again.
func (r *Reactor) Stop(c *Connection) {
	if c.fd >= 0 {
		r.epollDel(c.fd)
		delete(r.conns, c.fd)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		return
	}
	for i, t := range r.timers {
		if t == c {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			return
		}
	}
}

func epollEventsFor(ev Event) uint32 {
	var e uint32
	if ev&EvRead != 0 {
		e |= unix.EPOLLIN
	}
	if ev&EvWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

// Poll runs a single tick of the event loop: it waits up to maxWait for
// readiness or a timer to lapse, dispatches callbacks, and reclaims any
// connection whose callback requested CLOSE or REMOVE.
func (r *Reactor) Poll(maxWait time.Duration) (Outcome, error) {
	wait := r.nextDeadline(maxWait)
	tickStart := time.Now()

	events := make([]unix.EpollEvent, maxEpollEvents)
	n, err := unix.EpollWait(r.epfd, events, int(wait.Milliseconds()))
	for err == unix.EINTR {
		n, err = unix.EpollWait(r.epfd, events, int(wait.Milliseconds()))
	}
	if err != nil {
		return OutcomeNormal, fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	elapsed := time.Since(tickStart)
	r.tickTimers(elapsed)

	outcome := OutcomeNormal
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		mask := events[i].Events

		switch {
		case fd == r.ctrlFD:
			r.drainCtrl()
			outcome = OutcomeInterrupted
		case fd == r.listenFD:
			r.acceptLoop()
		default:
			c, ok := r.conns[fd]
			if !ok {
				continue
			}
			ev := translateEpollMask(mask)
			c.cb(ev, r, c)
		}
	}

	r.reclaim()
	return outcome, nil
}

// Run loops Poll until an interruption or an unrecoverable error occurs.
func (r *Reactor) Run(tick time.Duration) (Outcome, error) {
	for {
		outcome, err := r.Poll(tick)
		if err != nil {
			return outcome, err
		}
		if outcome == OutcomeInterrupted {
			return outcome, nil
		}
	}
}

// ListenAddr returns the address the reactor's listen socket is bound to,
// useful when New was given a ":0" wildcard port.
func (r *Reactor) ListenAddr() string {
	return r.listener.Addr().String()
}

// Interrupt asynchronously wakes a blocked Poll/Run call. It is safe to
// call from a signal handler or any goroutine.
func (r *Reactor) Interrupt() {
	_, _ = r.ctrlConn.WriteTo([]byte{0}, r.ctrlAddr)
}

// Close releases the epoll instance, the listener, and the control
// socket. Registered connections are not individually closed; callers
// should Stop them first if a clean per-connection shutdown matters.
func (r *Reactor) Close() error {
	_ = r.listener.Close()
	_ = r.ctrlConn.Close()
	return unix.Close(r.epfd)
}

func (r *Reactor) drainCtrl() {
	buf := make([]byte, 64)
	for {
		_ = r.ctrlConn.SetReadDeadline(time.Now())
		_, _, err := r.ctrlConn.ReadFrom(buf)
		if err != nil {
			break
		}
	}
	var zero time.Time
	_ = r.ctrlConn.SetReadDeadline(zero)
}

// acceptLoop accepts one connection per readiness event: the listener's
// Accept blocks when nothing is pending, and the level-triggered listen
// socket is reported again on the next tick while more connections wait.
func (r *Reactor) acceptLoop() {
	conn, err := r.listener.Accept()
	if err != nil {
		return
	}
	cb, udata, initial := r.accept(conn)
	if _, err := r.Add(conn, cb, udata, initial); err != nil {
		_ = conn.Close()
	}
}

func (r *Reactor) tickTimers(elapsed time.Duration) {
	fire := func(c *Connection) {
		if c.Timeout <= 0 {
			return
		}
		c.Timeout -= elapsed
		if c.Timeout <= 0 {
			c.Post(EvTimeout)
			c.cb(EvTimeout, r, c)
		}
	}
	for _, t := range r.timers {
		fire(t)
	}
	for _, c := range r.conns {
		fire(c)
	}
}

func (r *Reactor) reclaim() {
	for fd, c := range r.conns {
		if c.Pending&EvClose != 0 {
			r.epollDel(fd)
			delete(r.conns, fd)
			_ = c.conn.Close()
		} else if c.Pending&EvRemove != 0 {
			r.epollDel(fd)
			delete(r.conns, fd)
		}
	}
	kept := r.timers[:0]
	for _, t := range r.timers {
		if t.Pending&(EvClose|EvRemove) != 0 {
			continue
		}
		kept = append(kept, t)
	}
	r.timers = kept
}

func (r *Reactor) nextDeadline(maxWait time.Duration) time.Duration {
	best := maxWait
	consider := func(d time.Duration) {
		if d > 0 && d < best {
			best = d
		}
	}
	for _, t := range r.timers {
		consider(t.Timeout)
	}
	for _, c := range r.conns {
		consider(c.Timeout)
	}
	return best
}

func translateEpollMask(mask uint32) Event {
	var ev Event
	if mask&unix.EPOLLIN != 0 {
		ev |= EvRead
	}
	if mask&unix.EPOLLOUT != 0 {
		ev |= EvWrite
	}
	if mask&unix.EPOLLHUP != 0 {
		ev |= EvEOF
	}
	if mask&unix.EPOLLERR != 0 {
		ev |= EvErrRead
	}
	return ev
}

// Read performs a raw, non-blocking read on the connection's socket,
// bypassing net.Conn.Read so it never contends with the Go runtime's own
// netpoller goroutine parking.
func (c *Connection) Read(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// Write performs a raw, non-blocking write on the connection's socket.
func (c *Connection) Write(buf []byte) (int, error) {
	n, err := unix.Write(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func netfdOf(conn net.Conn) (int, error) {
	fd := netfd.GetFdFromConn(conn)
	if fd < 0 {
		return 0, fmt.Errorf("reactor: could not extract file descriptor from %T", conn)
	}
	return fd, nil
}
