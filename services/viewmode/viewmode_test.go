package viewmode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/services/history"
	"github.com/kwanifi/ratewatch/services/live"
	"github.com/kwanifi/ratewatch/services/stats"
)

type fetchResult struct {
	series dmodels.Series
	err    error
}

// fakeFetcher blocks until a result is queued. With ignoreCtx it keeps
// blocking after cancellation, like a transport that cannot be interrupted.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     int
	results   chan fetchResult
	ignoreCtx bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: make(chan fetchResult, 10)}
}

func (f *fakeFetcher) Fetch(ctx context.Context) (dmodels.Series, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.ignoreCtx {
		r := <-f.results
		return r.series, r.err
	}
	select {
	case r := <-f.results:
		return r.series, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", history.ErrFetchFailed, ctx.Err().Error())
	}
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStream records lifecycle calls and lets tests push samples.
type fakeStream struct {
	mu       sync.Mutex
	opens    int
	closes   int
	open     bool
	errored  bool
	epoch    uint64
	obs      live.Observer
	buf      *dmodels.LiveBuffer
	received bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{buf: dmodels.NewLiveBuffer(100)}
}

func (s *fakeStream) Open(ctx context.Context, epoch uint64, obs live.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.open = false
		s.closes++
	}
	s.buf.Reset()
	s.open = true
	s.errored = false
	s.received = false
	s.opens++
	s.epoch = epoch
	s.obs = obs
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.open = false
		s.closes++
	}
}

func (s *fakeStream) Samples() dmodels.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Samples()
}

func (s *fakeStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

func (s *fakeStream) State() live.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.open:
		return live.StateOpen
	case s.errored:
		return live.StateErrored
	case s.opens > 0:
		return live.StateClosed
	}
	return live.StateIdle
}

func (s *fakeStream) push(sample dmodels.Sample) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.buf.Push(sample)
	first := !s.received
	s.received = true
	epoch, obs := s.epoch, s.obs
	s.mu.Unlock()
	obs.SampleReceived(epoch, first)
}

func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	s.open = false
	s.errored = true
	epoch, obs := s.epoch, s.obs
	s.mu.Unlock()
	obs.ConnectionLost(epoch, err)
}

func (s *fakeStream) counts() (opens, closes int, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes, s.open
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var scenario = dmodels.Series{
	{Timestamp: 0, Rate: 1.000000},
	{Timestamp: 3600, Rate: 1.000050},
	{Timestamp: 7200, Rate: 0.999980},
}

func TestController_StartFetchesHistory(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	c := NewController(f, s)
	defer c.Stop()

	c.Start()
	snap := c.Snapshot()
	if snap.Mode != ModeHistory || !snap.Loading || !snap.FetchInFlight {
		t.Fatalf("expected loading history fetch, got %+v", snap)
	}

	f.results <- fetchResult{series: scenario}
	waitFor(t, "history loaded", func() bool { return !c.Snapshot().Loading })

	snap = c.Snapshot()
	if snap.Error != "" || snap.HistoryLength != 3 || snap.FetchInFlight {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	active, mode, _ := c.Active()
	if mode != ModeHistory || len(active) != 3 {
		t.Fatalf("unexpected active series %v (%s)", active, mode)
	}
	st := stats.Compute(active)
	if st.Latest != "0.999980" || st.Min != "0.999980" || st.Max != "1.000050" {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestController_FetchFailedKeepsStaleHistory(t *testing.T) {
	fail := false
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"timestamp":0,"rate":1.0},{"timestamp":3600,"rate":1.00005}]`))
	}))
	defer srv.Close()

	c := NewController(history.NewFetcher(srv.Client(), srv.URL, 0), newFakeStream())
	defer c.Stop()

	c.Start()
	waitFor(t, "first fetch", func() bool { return c.Snapshot().HistoryLength == 2 })

	mu.Lock()
	fail = true
	mu.Unlock()
	c.Refresh()
	waitFor(t, "failed fetch", func() bool { return !c.Snapshot().Loading })

	snap := c.Snapshot()
	if snap.Error != MsgFetchFailed {
		t.Errorf("expected %q, got %q", MsgFetchFailed, snap.Error)
	}
	if !errors.Is(c.Err(), history.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", c.Err())
	}
	if snap.HistoryLength != 2 {
		t.Errorf("history must be kept on failure, got %d samples", snap.HistoryLength)
	}
}

func TestController_FetchFailedOnEmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewController(history.NewFetcher(srv.Client(), srv.URL, 0), newFakeStream())
	defer c.Stop()
	c.Start()
	waitFor(t, "failed fetch", func() bool { return !c.Snapshot().Loading })

	snap := c.Snapshot()
	if snap.Error != MsgFetchFailed || snap.HistoryLength != 0 || snap.Loading {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestController_ModeSwitchExclusivity(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	c := NewController(f, s)
	defer c.Stop()

	c.Start()
	if err := c.SetMode(ModeLive); err != nil {
		t.Fatalf("SetMode(live): %v", err)
	}
	snap := c.Snapshot()
	opens, _, open := s.counts()
	if snap.FetchInFlight || !open || opens != 1 {
		t.Fatalf("history -> live: fetchInFlight=%v open=%v opens=%d", snap.FetchInFlight, open, opens)
	}
	if snap.Mode != ModeLive || !snap.Loading {
		t.Errorf("expected loading live mode, got %+v", snap)
	}

	if err := c.SetMode(ModeHistory); err != nil {
		t.Fatalf("SetMode(history): %v", err)
	}
	snap = c.Snapshot()
	_, closes, open := s.counts()
	if !snap.FetchInFlight || open || closes != 1 {
		t.Fatalf("live -> history: fetchInFlight=%v open=%v closes=%d", snap.FetchInFlight, open, closes)
	}
	waitFor(t, "fetch after live -> history", func() bool { return f.Calls() == 2 })
}

func TestController_LiveRefreshReopens(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	c := NewController(f, s)
	defer c.Stop()

	c.SetMode(ModeLive)
	s.push(dmodels.Sample{Timestamp: 1, Rate: 1})
	c.Refresh()

	opens, closes, open := s.counts()
	if opens != 2 || closes != 1 || !open {
		t.Errorf("expected reopen with previous handle closed, opens=%d closes=%d open=%v", opens, closes, open)
	}
	if s.Len() != 0 {
		t.Errorf("refresh must reset the live buffer, len %d", s.Len())
	}
	if !c.Snapshot().Loading {
		t.Error("refresh should set loading until the first sample")
	}
}

func TestController_HistoryRefreshInFlightGuard(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	c := NewController(f, s)
	defer c.Stop()

	c.Start()
	waitFor(t, "first fetch call", func() bool { return f.Calls() == 1 })
	c.Refresh()
	c.SetMode(ModeHistory)
	time.Sleep(20 * time.Millisecond)
	if f.Calls() != 1 {
		t.Fatalf("refresh during an in-flight fetch must not start another, calls=%d", f.Calls())
	}

	f.results <- fetchResult{series: scenario}
	waitFor(t, "history loaded", func() bool { return !c.Snapshot().FetchInFlight })
	c.Refresh()
	waitFor(t, "second fetch call", func() bool { return f.Calls() == 2 })
	f.results <- fetchResult{series: scenario[:1]}
	waitFor(t, "history replaced", func() bool { return c.Snapshot().HistoryLength == 1 })
}

func TestController_StaleFetchDiscarded(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	f.ignoreCtx = true
	c := NewController(f, s)
	defer c.Stop()

	c.Start()
	waitFor(t, "fetch call", func() bool { return f.Calls() == 1 })
	c.SetMode(ModeLive)

	f.results <- fetchResult{series: scenario}
	time.Sleep(30 * time.Millisecond)
	snap := c.Snapshot()
	if snap.HistoryLength != 0 {
		t.Errorf("superseded fetch result was applied: %d samples", snap.HistoryLength)
	}
	if snap.Mode != ModeLive || !snap.Loading {
		t.Errorf("stale result disturbed live state: %+v", snap)
	}

	c.SetMode(ModeHistory)
	waitFor(t, "second fetch call", func() bool { return f.Calls() == 2 })
	f.results <- fetchResult{series: scenario[:2]}
	waitFor(t, "history loaded", func() bool { return c.Snapshot().HistoryLength == 2 })
}

func TestController_LiveSamplesAndConnectionLost(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	c := NewController(f, s)
	defer c.Stop()

	c.SetMode(ModeLive)
	v0 := c.Version()
	s.push(dmodels.Sample{Timestamp: 15, Rate: 1.02})
	snap := c.Snapshot()
	if snap.Loading {
		t.Error("first live sample should clear loading")
	}
	if c.Version() == v0 {
		t.Error("version should change on a new live sample")
	}
	s.push(dmodels.Sample{Timestamp: 30, Rate: 1.03})

	s.fail(fmt.Errorf("%w: EOF", live.ErrConnectionLost))
	snap = c.Snapshot()
	if snap.Error != MsgLiveConnectionLost {
		t.Errorf("expected %q, got %q", MsgLiveConnectionLost, snap.Error)
	}
	active, mode, _ := c.Active()
	if mode != ModeLive || len(active) != 2 {
		t.Errorf("buffer should stay visible after the failure, got %d samples", len(active))
	}

	c.Refresh()
	if c.Snapshot().Error != "" {
		t.Error("error should be cleared when a new action starts")
	}
}

func TestController_StaleStreamEventsIgnored(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	c := NewController(f, s)
	defer c.Stop()

	c.SetMode(ModeLive)
	oldEpoch := c.Snapshot().Epoch
	c.Refresh()

	c.ConnectionLost(oldEpoch, live.ErrConnectionLost)
	c.SampleReceived(oldEpoch, true)
	snap := c.Snapshot()
	if snap.Error != "" || !snap.Loading {
		t.Errorf("events from a superseded connection changed state: %+v", snap)
	}
}

func TestController_Stop(t *testing.T) {
	f, s := newFakeFetcher(), newFakeStream()
	f.ignoreCtx = true
	c := NewController(f, s)

	c.SetMode(ModeLive)
	c.SetMode(ModeHistory)
	c.SetMode(ModeLive)
	c.Stop()
	c.Stop()

	_, _, open := s.counts()
	if open {
		t.Error("Stop must close the live connection")
	}
	opens, _, _ := s.counts()
	c.SetMode(ModeLive)
	c.Refresh()
	if o, _, _ := s.counts(); o != opens {
		t.Error("no connection may be opened after Stop")
	}

	f.results <- fetchResult{series: scenario}
	time.Sleep(20 * time.Millisecond)
	if c.Snapshot().HistoryLength != 0 {
		t.Error("a fetch landing after Stop must be discarded")
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"history", "live"} {
		if m, err := ParseMode(s); err != nil || string(m) != s {
			t.Errorf("ParseMode(%q) = %v, %v", s, m, err)
		}
	}
	if _, err := ParseMode("candles"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
	c := NewController(newFakeFetcher(), newFakeStream())
	defer c.Stop()
	if err := c.SetMode("candles"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("SetMode with unknown mode: %v", err)
	}
}

func TestController_EndToEnd(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case history.Path:
			w.Write([]byte(`[{"timestamp":0,"rate":1.0,"total_supply":"1.00K"}]`))
		case live.Path:
			w.Header().Set("Content-Type", "text/event-stream")
			for i := 0; i <= 100; i++ {
				fmt.Fprintf(w, "data: {\"timestamp\":%d,\"rate\":%v}\n\n", i, float64(i)/100)
			}
			w.(http.Flusher).Flush()
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	consumer := live.NewConsumer(&http.Client{}, srv.URL, 100)
	c := NewController(history.NewFetcher(srv.Client(), srv.URL, 0), consumer)
	defer c.Stop()

	c.Start()
	waitFor(t, "history", func() bool { return c.Snapshot().HistoryLength == 1 })

	c.SetMode(ModeLive)
	waitFor(t, "live buffer full", func() bool {
		active, _, _ := c.Active()
		return len(active) == 100 && active[99].Rate == 1.0
	})
	active, _, _ := c.Active()
	if active[0].Rate != 0.01 {
		t.Errorf("first retained rate = %v, want 0.01", active[0].Rate)
	}
	if st := consumer.State(); st != live.StateOpen {
		t.Errorf("expected open stream, got %s", st)
	}

	c.SetMode(ModeHistory)
	if st := consumer.State(); st != live.StateClosed {
		t.Errorf("expected closed stream after switching back, got %s", st)
	}
	waitFor(t, "history reloaded", func() bool { return !c.Snapshot().Loading })
}
