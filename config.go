package udpsrv

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const maxPort = 65535

// OverflowPolicy decides what a bounded ResponseQueue does when it is full.
type OverflowPolicy int

const (
	OverflowNone OverflowPolicy = iota // unbounded
	DropOldest                         // release the head, keep the new entry
	DropNewest                         // release the new entry
	RejectNew                          // stop reading until there is room
)

var overflowNames = []string{"none", "drop-oldest", "drop-newest", "reject-new"}

func (p OverflowPolicy) String() string {
	if p < 0 || int(p) >= len(overflowNames) {
		return "OverflowPolicy(" + strconv.Itoa(int(p)) + ")"
	}
	return overflowNames[p]
}

// ParseOverflow parses the names printed by OverflowPolicy.String.
func ParseOverflow(s string) (OverflowPolicy, error) {
	for i, name := range overflowNames {
		if s == name {
			return OverflowPolicy(i), nil
		}
	}
	return OverflowNone, errors.Errorf("unknown overflow policy %q", s)
}

// SendErrorPolicy decides whether a failed send stops the server.
type SendErrorPolicy int

const (
	SendErrorFatal SendErrorPolicy = iota
	SendErrorLog
)

// ParseSendErrorPolicy accepts "fatal" or "log".
func ParseSendErrorPolicy(s string) (SendErrorPolicy, error) {
	switch s {
	case "fatal":
		return SendErrorFatal, nil
	case "log":
		return SendErrorLog, nil
	}
	return SendErrorFatal, errors.Errorf("unknown send error policy %q", s)
}

// ParsePort accepts a non-empty string of decimal digits with a value in [0, 65535].
func ParsePort(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty port")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.Errorf("port %q is not a decimal number", s)
		}
	}
	port, err := strconv.Atoi(s)
	if err != nil || port > maxPort {
		return 0, errors.Errorf("port %q out of range", s)
	}
	return port, nil
}

// Config holds the server settings. The zero value is an unbounded queue, fatal send
// errors, no shutdown token and no logging.
type Config struct {
	QueueCap int
	Overflow OverflowPolicy

	// ShutdownToken, when non-empty, lets any sender stop the server with a
	// datagram starting with these bytes.
	ShutdownToken []byte

	SendErrors SendErrorPolicy

	// Signals that trigger a graceful shutdown of Serve.
	Signals []os.Signal

	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	nop := zerolog.Nop()
	return Config{Logger: &nop}
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}
