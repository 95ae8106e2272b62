package udpsrv

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrQueueFull is returned by Enqueue when a RejectNew queue is at capacity.
	ErrQueueFull = errors.New("response queue full")

	errIncompleteEntry = errors.New("incomplete pending response")
)

var (
	payloadBuf = sync.Pool{
		New: func() interface{} {
			return make([]byte, 0, MaxMessageSize)
		},
	}
)

// PendingResponse is a transformed payload waiting to be sent back to addr.
type PendingResponse struct {
	payload  []byte
	addr     net.Addr
	released bool
}

// newPendingResponse builds an entry holding the transform of src, using a pooled buffer.
func newPendingResponse(src []byte, addr net.Addr, transform func(dst, src []byte) []byte) *PendingResponse {
	buf := payloadBuf.Get().([]byte)[:0]
	return &PendingResponse{
		payload: transform(buf, src),
		addr:    addr,
	}
}

func (r *PendingResponse) Payload() []byte { return r.payload }

func (r *PendingResponse) Addr() net.Addr { return r.addr }

func (r *PendingResponse) Released() bool { return r.released }

// release returns the payload to the pool and drops the address.
// It reports false if the entry was already released.
func (r *PendingResponse) release() bool {
	if r.released {
		return false
	}
	r.released = true
	if cap(r.payload) == MaxMessageSize {
		payloadBuf.Put(r.payload[:0])
	}
	r.payload = nil
	r.addr = nil
	atomic.AddUint64(&DefaultStats.Released, 1)
	return true
}

// ResponseQueue is a FIFO of pending responses. It is not safe for concurrent use;
// only the event loop touches it.
type ResponseQueue struct {
	entries []*PendingResponse
	head    int

	cap      int
	overflow OverflowPolicy
}

// NewResponseQueue returns an empty queue. With OverflowNone or capacity <= 0 it is unbounded.
func NewResponseQueue(capacity int, overflow OverflowPolicy) *ResponseQueue {
	if capacity <= 0 {
		overflow = OverflowNone
	}
	if overflow == OverflowNone {
		capacity = 0
	}
	return &ResponseQueue{cap: capacity, overflow: overflow}
}

func (q *ResponseQueue) Size() int {
	return len(q.entries) - q.head
}

// Full reports whether a bounded queue has reached its capacity.
func (q *ResponseQueue) Full() bool {
	return q.cap > 0 && q.Size() >= q.cap
}

// Enqueue appends r to the tail. On a full bounded queue the overflow policy decides
// which entry is released; the released entry is counted as dropped.
func (q *ResponseQueue) Enqueue(r *PendingResponse) error {
	if r == nil || r.released || r.payload == nil || r.addr == nil {
		return errors.WithStack(errIncompleteEntry)
	}

	if q.Full() {
		switch q.overflow {
		case DropOldest:
			q.DequeueFront().release()
			atomic.AddUint64(&DefaultStats.Dropped, 1)
		case DropNewest:
			r.release()
			atomic.AddUint64(&DefaultStats.Dropped, 1)
			return nil
		default:
			r.release()
			atomic.AddUint64(&DefaultStats.Dropped, 1)
			return errors.WithStack(ErrQueueFull)
		}
	}

	q.entries = append(q.entries, r)
	atomic.AddUint64(&DefaultStats.Enqueued, 1)
	if n := uint64(q.Size()); n > atomic.LoadUint64(&DefaultStats.MaxQueueLen) {
		atomic.StoreUint64(&DefaultStats.MaxQueueLen, n)
	}
	return nil
}

// DequeueFront removes and returns the head. The caller owns the entry and must
// release it. It returns nil on an empty queue.
func (q *ResponseQueue) DequeueFront() *PendingResponse {
	if q.Size() == 0 {
		return nil
	}
	r := q.entries[q.head]
	q.entries[q.head] = nil
	q.head++

	if q.head == len(q.entries) {
		q.entries = q.entries[:0]
		q.head = 0
	} else if q.head >= 64 && q.head*2 >= len(q.entries) {
		n := copy(q.entries, q.entries[q.head:])
		for i := n; i < len(q.entries); i++ {
			q.entries[i] = nil
		}
		q.entries = q.entries[:n]
		q.head = 0
	}
	return r
}

// DrainAndRelease removes and releases every entry, returning how many there were.
func (q *ResponseQueue) DrainAndRelease() int {
	n := 0
	for r := q.DequeueFront(); r != nil; r = q.DequeueFront() {
		r.release()
		n++
	}
	q.entries = nil
	q.head = 0
	return n
}
