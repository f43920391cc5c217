package scheduler

import (
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/kwanifi/ratewatch/log"
)

type (
	Process func() error

	Scheduler struct {
		processes []process
		stop      chan struct{}
		once      sync.Once
		wg        sync.WaitGroup
	}

	process struct {
		fn       Process
		name     string
		interval time.Duration
	}
)

func NewScheduler() *Scheduler {
	return &Scheduler{stop: make(chan struct{})}
}

func (sch *Scheduler) Title() string {
	return "Scheduler"
}

// AddProcessWithInterval registers fn to run every interval once Run is
// called. Non-positive intervals are ignored.
func (sch *Scheduler) AddProcessWithInterval(fn Process, interval time.Duration) {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if interval <= 0 {
		log.Warn("Scheduler: %s: non-positive interval %s, skipped", name, interval)
		return
	}
	sch.processes = append(sch.processes, process{fn: fn, name: name, interval: interval})
}

// Run starts every process and blocks until Stop.
func (sch *Scheduler) Run() error {
	for _, p := range sch.processes {
		sch.wg.Add(1)
		go sch.loop(p)
	}
	<-sch.stop
	sch.wg.Wait()
	return nil
}

func (sch *Scheduler) Stop() error {
	sch.once.Do(func() { close(sch.stop) })
	return nil
}

func (sch *Scheduler) loop(p process) {
	defer sch.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sch.stop:
			return
		case <-ticker.C:
			if err := p.fn(); err != nil {
				log.Error("Scheduler: %s: %s", p.name, err.Error())
			}
		}
	}
}
