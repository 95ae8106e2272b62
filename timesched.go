package udpsrv

import (
	"container/heap"
	"sync"
	"time"
)

type (
	timedTask struct {
		execute func()
		ts      time.Time
	}
	// timedTaskHeap is ordered by deadline, earliest first
	timedTaskHeap []timedTask
)

func (h timedTaskHeap) Len() int           { return len(h) }
func (h timedTaskHeap) Less(i, j int) bool { return h[i].ts.Before(h[j].ts) }
func (h timedTaskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timedTaskHeap) Push(x interface{}) {
	*h = append(*h, x.(timedTask))
}

func (h *timedTaskHeap) Pop() interface{} {
	n := len(*h)
	x := (*h)[n-1]
	(*h)[n-1].execute = nil
	*h = (*h)[:n-1]
	return x
}

// TimedSched runs functions at their deadlines on a single background goroutine.
// Tasks must not block.
type TimedSched struct {
	pending    []timedTask
	pendingMu  sync.Mutex
	chNotify   chan struct{}
	die        chan struct{}
	dieOnce    sync.Once
	chFinished chan struct{}
}

func NewTimedSched() *TimedSched {
	ts := &TimedSched{
		chNotify:   make(chan struct{}, 1),
		die:        make(chan struct{}),
		chFinished: make(chan struct{}),
	}
	go ts.sched()
	return ts
}

func (ts *TimedSched) sched() {
	defer close(ts.chFinished)

	var tasks timedTaskHeap
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		select {
		case <-ts.chNotify:
			ts.pendingMu.Lock()
			for _, t := range ts.pending {
				heap.Push(&tasks, t)
			}
			for i := range ts.pending {
				ts.pending[i].execute = nil
			}
			ts.pending = ts.pending[:0]
			ts.pendingMu.Unlock()
		case <-timer.C:
		case <-ts.die:
			return
		}

		now := time.Now()
		for len(tasks) > 0 && !now.Before(tasks[0].ts) {
			heap.Pop(&tasks).(timedTask).execute()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if len(tasks) > 0 {
			timer.Reset(tasks[0].ts.Sub(now))
		} else {
			timer.Reset(time.Hour)
		}
	}
}

// Put schedules f to run at ddl, or as soon as possible if ddl has passed.
func (ts *TimedSched) Put(f func(), ddl time.Time) {
	ts.pendingMu.Lock()
	ts.pending = append(ts.pending, timedTask{f, ddl})
	ts.pendingMu.Unlock()

	select {
	case ts.chNotify <- struct{}{}:
	default:
	}
}

// Close stops the scheduler and waits for a running task to return. Tasks not yet
// due are discarded.
func (ts *TimedSched) Close() {
	ts.dieOnce.Do(func() {
		close(ts.die)
	})
	<-ts.chFinished
}
