package udpsrv

import (
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	// MaxMessageSize is the largest datagram payload accepted, longer ones are truncated.
	MaxMessageSize = 4096
)

var (
	errInvalidOperation = errors.New("invalid operation")
)

type (
	// Endpoint owns the single datagram socket the server reads from and writes to.
	Endpoint struct {
		conn    net.PacketConn
		ownConn bool // true: created by Bind, false: provided by the caller

		rxBuf []byte

		die     chan struct{}
		dieOnce sync.Once
	}

	setReadBuffer interface {
		SetReadBuffer(bytes int) error
	}

	setWriteBuffer interface {
		SetWriteBuffer(bytes int) error
	}

	setDSCP interface {
		SetDSCP(int) error
	}
)

// Bind creates a datagram socket bound to the wildcard address on port.
func Bind(port int) (*Endpoint, error) {
	if port < 0 || port > maxPort {
		return nil, errors.Errorf("port %d out of range", port)
	}
	udpaddr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conn, err := net.ListenUDP("udp", udpaddr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newEndpoint(conn, true), nil
}

// ServeConn serves on a connection provided by the caller. Close leaves conn open.
func ServeConn(conn net.PacketConn) *Endpoint {
	return newEndpoint(conn, false)
}

func newEndpoint(conn net.PacketConn, ownConn bool) *Endpoint {
	return &Endpoint{
		conn:    conn,
		ownConn: ownConn,
		rxBuf:   make([]byte, MaxMessageSize),
		die:     make(chan struct{}),
	}
}

// Close stops the endpoint and closes the socket if the endpoint owns it.
func (e *Endpoint) Close() error {
	var once bool
	e.dieOnce.Do(func() {
		close(e.die)
		once = true
	})

	if !once {
		return errors.WithStack(io.ErrClosedPipe)
	}
	if e.ownConn {
		return errors.WithStack(e.conn.Close())
	}
	return nil
}

func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// SyscallConn returns the raw connection of the socket, if it has one.
func (e *Endpoint) SyscallConn() (syscall.RawConn, error) {
	if sc, ok := e.conn.(syscall.Conn); ok {
		rc, err := sc.SyscallConn()
		return rc, errors.WithStack(err)
	}
	return nil, errInvalidOperation
}

// SetDSCP sets the 6bit DSCP field in IPv4 header, or 8bit Traffic Class in IPv6 header.
//
// if the underlying connection has implemented `func SetDSCP(int) error`, SetDSCP() will invoke
// this function instead.
func (e *Endpoint) SetDSCP(dscp int) error {
	if ts, ok := e.conn.(setDSCP); ok {
		return ts.SetDSCP(dscp)
	}

	if nc, ok := e.conn.(net.Conn); ok {
		var succeed bool
		if err := ipv4.NewConn(nc).SetTOS(dscp << 2); err == nil {
			succeed = true
		}
		if err := ipv6.NewConn(nc).SetTrafficClass(dscp); err == nil {
			succeed = true
		}

		if succeed {
			return nil
		}
	}
	return errInvalidOperation
}

// SetReadBuffer sets the socket read buffer
func (e *Endpoint) SetReadBuffer(bytes int) error {
	if nc, ok := e.conn.(setReadBuffer); ok {
		return errors.WithStack(nc.SetReadBuffer(bytes))
	}
	return errInvalidOperation
}

// SetWriteBuffer sets the socket write buffer
func (e *Endpoint) SetWriteBuffer(bytes int) error {
	if nc, ok := e.conn.(setWriteBuffer); ok {
		return errors.WithStack(nc.SetWriteBuffer(bytes))
	}
	return errInvalidOperation
}
