package udpsrv

import (
	"io"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindOutOfRange(t *testing.T) {
	_, err := Bind(-1)
	assert.Error(t, err)
	_, err = Bind(maxPort + 1)
	assert.Error(t, err)
}

func TestBindPortInUse(t *testing.T) {
	ep, err := Bind(0)
	require.NoError(t, err)
	defer ep.Close()

	_, err = Bind(ep.LocalAddr().(*net.UDPAddr).Port)
	assert.Error(t, err)
}

func TestEndpointClose(t *testing.T) {
	ep, err := Bind(0)
	require.NoError(t, err)
	require.NoError(t, ep.SetReadBuffer(1<<20))
	require.NoError(t, ep.SetWriteBuffer(1<<20))

	require.NoError(t, ep.Close())
	assert.Equal(t, io.ErrClosedPipe, errors.Cause(ep.Close()))

	_, _, err = ep.Receive()
	assert.Equal(t, io.ErrClosedPipe, errors.Cause(err))
	_, err = ep.SendTo([]byte("x"), testAddr(1))
	assert.Equal(t, io.ErrClosedPipe, errors.Cause(err))
}

func TestServeConnLeavesConnOpen(t *testing.T) {
	server := newLossless(t)
	client := newLossless(t)

	ep := ServeConn(server)
	require.NoError(t, ep.Close())

	// the caller still owns server
	_, err := client.WriteTo([]byte("still open"), server.LocalAddr())
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, _, err := server.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "still open", string(buf[:n]))
}

func TestEndpointOptionsWithoutSocket(t *testing.T) {
	ep := ServeConn(newLossless(t))
	assert.Equal(t, errInvalidOperation, ep.SetDSCP(46))
	assert.Equal(t, errInvalidOperation, ep.SetReadBuffer(1024))
	assert.Equal(t, errInvalidOperation, ep.SetWriteBuffer(1024))
	_, err := ep.SyscallConn()
	assert.Equal(t, errInvalidOperation, err)
}

func TestEndpointReceiveAndSend(t *testing.T) {
	before := DefaultStats.Copy()
	server := newLossless(t)
	client := newLossless(t)
	ep := ServeConn(server)

	_, err := client.WriteTo([]byte("payload"), server.LocalAddr())
	require.NoError(t, err)
	data, from, err := ep.Receive()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, client.LocalAddr().String(), from.String())

	n, err := ep.SendTo([]byte("reply"), from)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	msg, _ := readReply(t, client)
	assert.Equal(t, "reply", msg)

	after := DefaultStats.Copy()
	assert.Equal(t, uint64(1), after.InDatagrams-before.InDatagrams)
	assert.Equal(t, uint64(7), after.InBytes-before.InBytes)
	assert.Equal(t, uint64(1), after.OutDatagrams-before.OutDatagrams)
	assert.Equal(t, uint64(5), after.OutBytes-before.OutBytes)
}
