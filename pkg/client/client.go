// Package client implements the blocking one-shot RPC client (C8): dial,
// write a request frame, block for the matching response frame, and
// disconnect. A Client carries no state between calls beyond its dial
// target and timeouts — every call opens its own connection, since the
// wire format allows at most one outstanding request per connection.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/xid"

	"github.com/nanorpc/nanorpc/internal/config"
	"github.com/nanorpc/nanorpc/internal/wire"
)

// ErrFormatMismatch is returned by buildParams when the format string and
// the argument list disagree in count or an argument has the wrong type
// for its verb.
var ErrFormatMismatch = errors.New("client: format/argument mismatch")

// Client issues blocking RPCs against a single server address.
type Client struct {
	addr string
	cfg  config.ClientConfig
}

// New creates a Client that dials addr for every call, using cfg's
// connect/call timeouts and stack-buffer size.
func New(addr string, cfg config.ClientConfig) *Client {
	return &Client{addr: addr, cfg: cfg}
}

// Call issues a FUNCTION-type request for method and blocks for its
// response. format builds the parameter list the way the original's
// request() helper does: "%u" consumes a uint32, "%d" an int32, "%s" a
// []byte or string copied into an owned Varchar. At most
// wire.MaxParameters verbs are accepted.
func (c *Client) Call(method string, format string, args ...any) (*wire.Response, error) {
	return c.call(wire.FunctionType, method, format, args...)
}

// Notify issues a NOTIFICATION-type request and returns once the frame has
// been written; the server never sends a response for a notification, so
// Notify does not block waiting for one.
func (c *Client) Notify(method string, format string, args ...any) error {
	params, err := buildParams(format, args...)
	if err != nil {
		return err
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := &wire.Request{
		MethodType: wire.NotificationType,
		TxID:       newTxID(),
		Method:     method,
		Params:     params,
	}
	raw, err := wire.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}
	if _, err := conn.Write(raw); err != nil {
		return fmt.Errorf("client: write request: %w", err)
	}
	return nil
}

func (c *Client) call(methodType wire.MethodType, method, format string, args ...any) (*wire.Response, error) {
	params, err := buildParams(format, args...)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := &wire.Request{
		MethodType: methodType,
		TxID:       newTxID(),
		Method:     method,
		Params:     params,
	}
	raw, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	if c.cfg.CallTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.cfg.CallTimeout)); err != nil {
			return nil, fmt.Errorf("client: set deadline: %w", err)
		}
	}

	if _, err := conn.Write(raw); err != nil {
		return nil, fmt.Errorf("client: write request: %w", err)
	}

	frame, err := readFrame(conn, c.cfg.StackBufferSize)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	resp, n, err := wire.ParseResponse(frame)
	if err != nil {
		return nil, fmt.Errorf("client: parse response: %w", err)
	}
	if n != len(frame) {
		return nil, fmt.Errorf("client: %w", wire.ErrTrailingBytes)
	}
	return resp, nil
}

func (c *Client) dial() (net.Conn, error) {
	timeout := c.cfg.ConnectTimeout
	conn, err := net.DialTimeout("tcp", c.addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", c.addr, err)
	}
	return conn, nil
}

// readFrame reads one self-describing frame from r. It reads into an
// initial buffer of stackSize bytes — the Go analogue of the original's
// stack buffer — until GetPackageSize can tell the frame's length, and
// allocates a second, larger buffer only when that length exceeds it,
// preserving the original's two-tier allocation strategy.
func readFrame(r io.Reader, stackSize int) ([]byte, error) {
	if stackSize <= 0 {
		stackSize = 10 * 1024
	}
	stack := make([]byte, stackSize)

	have := 0
	var size int
	for {
		if have == len(stack) {
			return nil, wire.ErrNeedMoreData
		}
		n, err := r.Read(stack[have:])
		if err != nil {
			return nil, err
		}
		have += n
		s, err := wire.GetPackageSize(stack[:have])
		if err == nil {
			size = s
			break
		}
		if !errors.Is(err, wire.ErrNeedMoreData) {
			return nil, err
		}
	}

	var buf []byte
	if size <= len(stack) {
		buf = stack
	} else {
		buf = make([]byte, size)
		copy(buf, stack[:have])
	}

	for have < size {
		n, err := r.Read(buf[have:size])
		if err != nil {
			return nil, err
		}
		have += n
	}
	return buf[:size], nil
}

// buildParams translates format's verbs into wire.Vals, grounded on the
// original's request()'s printf-style parameter builder: %u for uint32,
// %d for int32, %s for a string/[]byte copied into an owned Varchar.
func buildParams(format string, args ...any) ([]wire.Val, error) {
	if len(format) == 0 {
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: no verbs but %d argument(s) given", ErrFormatMismatch, len(args))
		}
		return nil, nil
	}

	verbs := make([]byte, 0, len(format))
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			return nil, fmt.Errorf("%w: format must consist only of %%u/%%d/%%s verbs", ErrFormatMismatch)
		}
		i++
		if i >= len(format) {
			return nil, fmt.Errorf("%w: trailing %%", ErrFormatMismatch)
		}
		verbs = append(verbs, format[i])
	}
	if len(verbs) > wire.MaxParameters {
		return nil, fmt.Errorf("%w: %d parameters exceeds the %d-parameter limit", ErrFormatMismatch, len(verbs), wire.MaxParameters)
	}
	if len(verbs) != len(args) {
		return nil, fmt.Errorf("%w: %d verb(s), %d argument(s)", ErrFormatMismatch, len(verbs), len(args))
	}

	params := make([]wire.Val, len(verbs))
	for i, verb := range verbs {
		val, err := buildVal(verb, args[i])
		if err != nil {
			return nil, err
		}
		params[i] = val
	}
	return params, nil
}

func buildVal(verb byte, arg any) (wire.Val, error) {
	switch verb {
	case 'u':
		switch v := arg.(type) {
		case uint32:
			return wire.NewUintVal(v), nil
		case uint:
			return wire.NewUintVal(uint32(v)), nil
		case int:
			return wire.NewUintVal(uint32(v)), nil
		default:
			return wire.Val{}, fmt.Errorf("%w: %%u wants an unsigned integer, got %T", ErrFormatMismatch, arg)
		}
	case 'd':
		switch v := arg.(type) {
		case int32:
			return wire.NewIntVal(v), nil
		case int:
			return wire.NewIntVal(int32(v)), nil
		default:
			return wire.Val{}, fmt.Errorf("%w: %%d wants a signed integer, got %T", ErrFormatMismatch, arg)
		}
	case 's':
		switch v := arg.(type) {
		case string:
			return wire.NewVarcharVal([]byte(v)), nil
		case []byte:
			return wire.NewVarcharVal(v), nil
		default:
			return wire.Val{}, fmt.Errorf("%w: %%s wants a string or []byte, got %T", ErrFormatMismatch, arg)
		}
	default:
		return wire.Val{}, fmt.Errorf("%w: unknown verb %%%c", ErrFormatMismatch, verb)
	}
}

// newTxID derives a transaction id from an xid. The 4 bytes kept are
// xid's big-endian seconds timestamp, so calls made within the same second
// share an id; uniqueness is not a protocol requirement, since a
// connection carries at most one RPC.
func newTxID() [4]byte {
	id := xid.New()
	raw := id.Bytes()
	var txid [4]byte
	copy(txid[:], raw[:4])
	return txid
}
