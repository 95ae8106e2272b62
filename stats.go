package udpsrv

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tealeg/xlsx"
)

// Stats holds the server counters. Fields are updated atomically.
type Stats struct {
	InDatagrams  uint64 // datagrams received
	InBytes      uint64 // payload bytes received
	OutDatagrams uint64 // responses sent
	OutBytes     uint64 // payload bytes sent
	Enqueued     uint64 // responses queued
	Dropped      uint64 // responses discarded by the overflow policy
	Released     uint64 // responses whose resources were released
	SendErrors   uint64 // failed sends
	MaxQueueLen  uint64 // largest queue length seen
}

// DefaultStats is the process-wide counter set.
var DefaultStats *Stats

func init() {
	DefaultStats = newStats()
}

func newStats() *Stats {
	return new(Stats)
}

func (s *Stats) Header() []string {
	return []string{
		"InDatagrams",
		"InBytes",
		"OutDatagrams",
		"OutBytes",
		"Enqueued",
		"Dropped",
		"Released",
		"SendErrors",
		"MaxQueueLen",
	}
}

func (s *Stats) ToSlice() []string {
	st := s.Copy()
	return []string{
		fmt.Sprint(st.InDatagrams),
		fmt.Sprint(st.InBytes),
		fmt.Sprint(st.OutDatagrams),
		fmt.Sprint(st.OutBytes),
		fmt.Sprint(st.Enqueued),
		fmt.Sprint(st.Dropped),
		fmt.Sprint(st.Released),
		fmt.Sprint(st.SendErrors),
		fmt.Sprint(st.MaxQueueLen),
	}
}

// Copy takes a snapshot of the counters.
func (s *Stats) Copy() *Stats {
	d := newStats()
	d.InDatagrams = atomic.LoadUint64(&s.InDatagrams)
	d.InBytes = atomic.LoadUint64(&s.InBytes)
	d.OutDatagrams = atomic.LoadUint64(&s.OutDatagrams)
	d.OutBytes = atomic.LoadUint64(&s.OutBytes)
	d.Enqueued = atomic.LoadUint64(&s.Enqueued)
	d.Dropped = atomic.LoadUint64(&s.Dropped)
	d.Released = atomic.LoadUint64(&s.Released)
	d.SendErrors = atomic.LoadUint64(&s.SendErrors)
	d.MaxQueueLen = atomic.LoadUint64(&s.MaxQueueLen)
	return d
}

func (s *Stats) Reset() {
	atomic.StoreUint64(&s.InDatagrams, 0)
	atomic.StoreUint64(&s.InBytes, 0)
	atomic.StoreUint64(&s.OutDatagrams, 0)
	atomic.StoreUint64(&s.OutBytes, 0)
	atomic.StoreUint64(&s.Enqueued, 0)
	atomic.StoreUint64(&s.Dropped, 0)
	atomic.StoreUint64(&s.Released, 0)
	atomic.StoreUint64(&s.SendErrors, 0)
	atomic.StoreUint64(&s.MaxQueueLen, 0)
}

// WriteXLSX saves a snapshot of the counters as a one-sheet workbook: a header row
// followed by a value row.
func (s *Stats) WriteXLSX(path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("stats")
	if err != nil {
		return errors.WithStack(err)
	}

	header := sheet.AddRow()
	for _, name := range s.Header() {
		header.AddCell().SetString(name)
	}
	values := sheet.AddRow()
	for _, v := range s.ToSlice() {
		values.AddCell().SetString(v)
	}

	return errors.WithStack(file.Save(path))
}

// StatsReporter hands a snapshot of DefaultStats to fn every interval.
type StatsReporter struct {
	sched    *TimedSched
	interval time.Duration
	fn       func(*Stats)

	die     chan struct{}
	dieOnce sync.Once
}

func NewStatsReporter(sched *TimedSched, interval time.Duration, fn func(*Stats)) *StatsReporter {
	r := &StatsReporter{
		sched:    sched,
		interval: interval,
		fn:       fn,
		die:      make(chan struct{}),
	}
	sched.Put(r.report, time.Now().Add(interval))
	return r
}

func (r *StatsReporter) report() {
	select {
	case <-r.die:
	default:
		r.fn(DefaultStats.Copy())
		r.sched.Put(r.report, time.Now().Add(r.interval))
	}
}

func (r *StatsReporter) Stop() {
	r.dieOnce.Do(func() {
		close(r.die)
	})
}
