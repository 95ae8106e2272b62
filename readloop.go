package udpsrv

import (
	"io"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Receive reads one datagram. The returned slice is only valid until the next call.
// It must only be called once the multiplexer reported the socket readable.
func (e *Endpoint) Receive() ([]byte, net.Addr, error) {
	select {
	case <-e.die:
		return nil, nil, errors.WithStack(io.ErrClosedPipe)
	default:
	}

	n, from, err := e.conn.ReadFrom(e.rxBuf)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	atomic.AddUint64(&DefaultStats.InDatagrams, 1)
	atomic.AddUint64(&DefaultStats.InBytes, uint64(n))
	return e.rxBuf[:n], from, nil
}
