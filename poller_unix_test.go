//go:build unix

package udpsrv

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackServer binds an ephemeral port and serves it until the test ends.
func loopbackServer(t *testing.T, cfg Config) (port int, done <-chan error, cancel context.CancelFunc) {
	ep, err := Bind(0)
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	mux, err := NewPoller(ep)
	require.NoError(t, err)
	t.Cleanup(func() { mux.Close() })

	done, cancel = startServer(t, NewServer(ep, mux, cfg))
	return ep.LocalAddr().(*net.UDPAddr).Port, done, cancel
}

func dialLoopback(t *testing.T, port int) *net.UDPConn {
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *net.UDPConn, msg []byte) []byte {
	_, err := conn.Write(msg)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 2*MaxMessageSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestLoopbackHello(t *testing.T) {
	port, done, cancel := loopbackServer(t, DefaultConfig())
	conn := dialLoopback(t, port)

	assert.Equal(t, "HELLO", string(roundTrip(t, conn, []byte("hello"))))
	assert.Equal(t, "", string(roundTrip(t, conn, []byte{})))

	cancel()
	require.NoError(t, waitServe(t, done))
}

func TestLoopbackTruncatesLongDatagrams(t *testing.T) {
	port, done, cancel := loopbackServer(t, DefaultConfig())
	conn := dialLoopback(t, port)

	reply := roundTrip(t, conn, bytes.Repeat([]byte("a"), MaxMessageSize+904))
	assert.Equal(t, bytes.Repeat([]byte("A"), MaxMessageSize), reply)

	cancel()
	require.NoError(t, waitServe(t, done))
}

func TestLoopbackManyClients(t *testing.T) {
	port, done, cancel := loopbackServer(t, DefaultConfig())

	var conns []*net.UDPConn
	for i := 0; i < 8; i++ {
		conns = append(conns, dialLoopback(t, port))
	}
	for i, conn := range conns {
		_, err := conn.Write([]byte("client-" + strconv.Itoa(i)))
		require.NoError(t, err)
	}
	for i, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		buf := make([]byte, MaxMessageSize)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "CLIENT-"+strconv.Itoa(i), string(buf[:n]))
	}

	cancel()
	require.NoError(t, waitServe(t, done))
}

func TestLoopbackShutdownToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShutdownToken = []byte("quit")
	port, done, _ := loopbackServer(t, cfg)
	conn := dialLoopback(t, port)

	assert.Equal(t, "STAY", string(roundTrip(t, conn, []byte("stay"))))
	assert.Equal(t, "\n", string(roundTrip(t, conn, []byte("quit"))))
	require.NoError(t, waitServe(t, done))
}

func TestPollerWake(t *testing.T) {
	ep, err := Bind(0)
	require.NoError(t, err)
	defer ep.Close()
	mux, err := NewPoller(ep)
	require.NoError(t, err)

	// a wake-up before Wait is not lost
	mux.Wake()
	mux.Wake()
	ready, err := mux.Wait(InterestRead)
	require.NoError(t, err)
	assert.Equal(t, Interest(0), ready)

	// an idle UDP socket is always writable
	ready, err = mux.Wait(InterestRead | InterestWrite)
	require.NoError(t, err)
	assert.Equal(t, InterestWrite, ready)

	require.NoError(t, mux.Close())
	require.NoError(t, mux.Close())
	mux.Wake()
}

func TestPollerReadReadiness(t *testing.T) {
	ep, err := Bind(0)
	require.NoError(t, err)
	defer ep.Close()
	mux, err := NewPoller(ep)
	require.NoError(t, err)
	defer mux.Close()

	conn := dialLoopback(t, ep.LocalAddr().(*net.UDPAddr).Port)
	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	ready, err := mux.Wait(InterestRead)
	require.NoError(t, err)
	require.Equal(t, InterestRead, ready)

	data, from, err := ep.Receive()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))
	assert.Equal(t, conn.LocalAddr().(*net.UDPAddr).Port, from.(*net.UDPAddr).Port)
}
