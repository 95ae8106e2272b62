package udpsrv

import "github.com/pkg/errors"

var errUnsupported = errors.New("readiness polling not supported on this platform")

// Interest is a set of readiness conditions on the endpoint socket.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

func (i Interest) String() string {
	switch i {
	case 0:
		return "none"
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestRead | InterestWrite:
		return "read|write"
	}
	return "invalid"
}

// Multiplexer waits for the endpoint socket to become ready.
type Multiplexer interface {
	// Wait blocks until the socket is ready for one of the conditions in want, or
	// until Wake is called. It returns the subset of want that is ready, which is
	// empty after a wake-up.
	Wait(want Interest) (Interest, error)
	// Wake interrupts a blocked or the next Wait. It is safe to call from any goroutine.
	Wake()
	Close() error
}
