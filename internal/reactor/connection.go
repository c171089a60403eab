package reactor

import (
	"errors"
	"net"
	"time"
)

// ErrWouldBlock is returned by Connection.Read/Write when the underlying
// non-blocking socket has no data or buffer space available; the reactor
// translates this from the platform's EAGAIN/EWOULDBLOCK so callers never
// need to depend on a syscall package directly.
var ErrWouldBlock = errors.New("reactor: operation would block")

// Callback is invoked by the reactor when ev fires on c. It must return
// promptly: the reactor is single-threaded and no other connection makes
// progress while a callback runs.
type Callback func(ev Event, r *Reactor, c *Connection)

// Connection is the reactor's bookkeeping record for one socket or timer,
// grounded on the original's net_connection_t. A Connection is owned
// exclusively by the reactor goroutine; nothing else may touch its fields.
type Connection struct {
	fd       int // -1 for a pure timer
	conn     net.Conn
	In       *Buffer
	Out      *Buffer
	Pending  Event
	Timeout  time.Duration // remaining time until a TIMEOUT event fires; <=0 disables it
	UserData any

	cb       Callback
	isListen bool
	isCtrl   bool
}

// FD returns the connection's raw file descriptor, or -1 for a timer.
func (c *Connection) FD() int {
	return c.fd
}

// Post ORs additional bits into the connection's pending mask, mirroring
// net_post.
func (c *Connection) Post(ev Event) {
	c.Pending |= ev
}

// Clear removes bits from the connection's pending mask.
func (c *Connection) Clear(ev Event) {
	c.Pending &^= ev
}
