package udpsrv

import (
	"io"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

// SendTo makes one best-effort attempt to send p to addr.
func (e *Endpoint) SendTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-e.die:
		return 0, errors.WithStack(io.ErrClosedPipe)
	default:
	}

	n, err := e.conn.WriteTo(p, addr)
	if err != nil {
		return n, errors.WithStack(err)
	}
	atomic.AddUint64(&DefaultStats.OutDatagrams, 1)
	atomic.AddUint64(&DefaultStats.OutBytes, uint64(n))
	return n, nil
}
