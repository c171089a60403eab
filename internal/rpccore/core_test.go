package rpccore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanorpc/nanorpc/internal/config"
	"github.com/nanorpc/nanorpc/internal/wire"
)

func testConfig(addr string) *config.ServerConfig {
	return &config.ServerConfig{
		ListenAddr:        addr,
		Workers:           1,
		PollTimeout:       20 * time.Millisecond,
		IdleCloseTimeout:  time.Second,
		OutbandQueueSize:  100,
		ReserveMempool:    4,
		MaxMethodNameLen:  128,
		MaxParameterCount: 16,
		SpinRetries:       4,
		MinSleep:          time.Millisecond,
		MaxSleep:          10 * time.Millisecond,
	}
}

func runTicks(t *testing.T, core *Core, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := core.Poll()
		require.NoError(t, err)
	}
}

func TestCoreRoundTripsAFunctionCall(t *testing.T) {
	core, err := NewCore(testConfig("127.0.0.1:0"))
	require.NoError(t, err)
	defer core.Close()

	addr := core.reactor.ListenAddr()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	req := &wire.Request{
		MethodType: wire.FunctionType,
		TxID:       [4]byte{1, 2, 3, 4},
		Method:     "add",
		Params:     []wire.Val{wire.NewIntVal(1), wire.NewIntVal(3)},
	}
	raw, err := wire.EncodeRequest(req)
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)

	// Give the reactor a few ticks to accept the connection and read the
	// frame onto the request queue.
	var token Token
	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runTicks(t, core, 1)
		if tok, raw, ok := core.RequestTryRecv(); ok {
			token, got = tok, raw
			break
		}
	}
	require.NotNil(t, got, "request never reached the queue")

	parsed, n, err := wire.ParseRequest(got)
	require.NoError(t, err)
	assert.Equal(t, len(got), n)
	assert.Equal(t, "add", parsed.Method)

	result := wire.IntVal(4)
	resp := &wire.Response{
		MethodType: wire.FunctionType,
		TxID:       parsed.TxID,
		Method:     parsed.Method,
		ErrorCode:  wire.OK,
		Result:     &result,
	}
	respBytes, err := wire.EncodeResponse(resp)
	require.NoError(t, err)
	core.ResponseSend(token, respBytes)

	// Drive ticks until the reply is flushed to the socket.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	readDone := make(chan struct{})
	var n2 int
	var readErr error
	go func() {
		n2, readErr = conn.Read(buf)
		close(readDone)
	}()

	drainDeadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(drainDeadline) {
		select {
		case <-readDone:
			goto done
		default:
		}
		runTicks(t, core, 1)
		time.Sleep(5 * time.Millisecond)
	}
done:
	<-readDone
	require.NoError(t, readErr)

	gotResp, _, err := wire.ParseResponse(buf[:n2])
	require.NoError(t, err)
	assert.Equal(t, wire.OK, gotResp.ErrorCode)
	assert.Equal(t, parsed.TxID, gotResp.TxID)
}

func TestCoreDropsConnectionOnTrailingBytes(t *testing.T) {
	core, err := NewCore(testConfig("127.0.0.1:0"))
	require.NoError(t, err)
	defer core.Close()

	addr := core.reactor.ListenAddr()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// A connection carries at most one outstanding request; two frames
	// arriving back-to-back before the first is drained leaves bytes past
	// the first frame's declared length once it is sized.
	one, err := wire.EncodeRequest(&wire.Request{
		MethodType: wire.NotificationType,
		TxID:       [4]byte{1, 1, 1, 1},
		Method:     "ping",
	})
	require.NoError(t, err)
	_, err = conn.Write(append(append([]byte{}, one...), one...))
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	closed := false
	for time.Now().Before(deadline) {
		runTicks(t, core, 1)
		buf := make([]byte, 1)
		conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		_, err := conn.Read(buf)
		if err != nil {
			closed = true
			break
		}
	}
	assert.True(t, closed, "a connection fed two pipelined frames should be closed")
}
