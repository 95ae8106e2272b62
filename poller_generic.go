//go:build !unix

package udpsrv

import "github.com/pkg/errors"

// NewPoller is only available on unix platforms.
func NewPoller(e *Endpoint) (Multiplexer, error) {
	return nil, errors.WithStack(errUnsupported)
}
