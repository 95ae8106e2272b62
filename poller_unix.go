//go:build unix

package udpsrv

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Poller is a Multiplexer built on poll(2) over the endpoint descriptor and a
// self-pipe used for wake-ups.
type Poller struct {
	fd   int
	wake [2]int // read end, write end
	fds  [2]unix.PollFd

	mu     sync.Mutex
	closed bool
}

// NewPoller watches the socket of e. The endpoint must outlive the poller.
func NewPoller(e *Endpoint) (Multiplexer, error) {
	rc, err := e.SyscallConn()
	if err != nil {
		return nil, err
	}
	fd := -1
	if err := rc.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return nil, errors.WithStack(err)
	}

	p := &Poller{fd: fd}
	if err := unix.Pipe(p.wake[:]); err != nil {
		return nil, errors.WithStack(err)
	}
	for _, w := range p.wake {
		unix.CloseOnExec(w)
		if err := unix.SetNonblock(w, true); err != nil {
			unix.Close(p.wake[0])
			unix.Close(p.wake[1])
			return nil, errors.WithStack(err)
		}
	}
	return p, nil
}

func (p *Poller) Wait(want Interest) (Interest, error) {
	var events int16
	if want&InterestRead != 0 {
		events |= unix.POLLIN
	}
	if want&InterestWrite != 0 {
		events |= unix.POLLOUT
	}

	for {
		p.fds[0] = unix.PollFd{Fd: int32(p.fd), Events: events}
		p.fds[1] = unix.PollFd{Fd: int32(p.wake[0]), Events: unix.POLLIN}
		if _, err := unix.Poll(p.fds[:], -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, errors.WithStack(err)
		}

		if p.fds[1].Revents&unix.POLLIN != 0 {
			p.drain()
			return 0, nil
		}

		revents := p.fds[0].Revents
		if revents&unix.POLLNVAL != 0 {
			return 0, errors.WithStack(unix.EBADF)
		}
		var ready Interest
		// errors surface through the next read
		if revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 && want&InterestRead != 0 {
			ready |= InterestRead
		}
		if revents&unix.POLLOUT != 0 {
			ready |= InterestWrite
		}
		if ready != 0 {
			return ready, nil
		}
	}
}

func (p *Poller) drain() {
	var buf [64]byte
	for {
		if n, err := unix.Read(p.wake[0], buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (p *Poller) Wake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// a full pipe already holds a pending wake-up
	unix.Write(p.wake[1], []byte{0})
}

// Close releases the wake-up pipe. The endpoint socket is left to the endpoint.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := unix.Close(p.wake[0])
	if err2 := unix.Close(p.wake[1]); err == nil {
		err = err2
	}
	return errors.WithStack(err)
}
