package viewmode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/log"
	"github.com/kwanifi/ratewatch/services/history"
	"github.com/kwanifi/ratewatch/services/live"
)

type Mode string

const (
	ModeHistory Mode = "history"
	ModeLive    Mode = "live"
)

const (
	MsgFetchFailed        = "Failed to fetch history."
	MsgLiveConnectionLost = "Live update connection lost."
)

var ErrUnknownMode = errors.New("unknown view mode")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHistory, ModeLive:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type (
	// Stream is the live source the controller drives.
	Stream interface {
		Open(ctx context.Context, epoch uint64, obs live.Observer)
		Close()
		Samples() dmodels.Series
		Len() int
		State() live.State
	}

	Snapshot struct {
		Mode          Mode
		Loading       bool
		Error         string
		Epoch         uint64
		Version       uint64
		HistoryLength int
		LiveLength    int
		LiveState     live.State
		FetchInFlight bool
		UpdatedAt     time.Time
	}

	// Controller owns the active mode, the historical series and the single
	// live connection. All state changes happen under mu; fetch results and
	// stream events carrying an older epoch are discarded.
	Controller struct {
		fetcher history.Fetcher
		stream  Stream

		ctx    context.Context
		cancel context.CancelFunc

		mu            sync.Mutex
		mode          Mode
		epoch         uint64
		version       uint64
		loading       bool
		err           error
		history       dmodels.Series
		fetchInFlight bool
		fetchCancel   context.CancelFunc
		updatedAt     time.Time
		stopped       bool
	}
)

func NewController(fetcher history.Fetcher, stream Stream) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher: fetcher,
		stream:  stream,
		ctx:     ctx,
		cancel:  cancel,
		mode:    ModeHistory,
	}
}

// Start enters history mode and triggers the initial fetch.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.mode = ModeHistory
	c.beginFetchLocked()
}

// SetMode switches the data source. Selecting the current mode again acts as
// an explicit refresh.
func (c *Controller) SetMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setModeLocked(mode)
	return nil
}

// Refresh re-runs the action of the current mode.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setModeLocked(c.mode)
}

func (c *Controller) setModeLocked(mode Mode) {
	if c.stopped {
		return
	}
	if mode != c.mode {
		log.Info("viewmode SetMode: switching %s -> %s", c.mode, mode)
	}
	switch mode {
	case ModeLive:
		c.cancelFetchLocked()
		c.mode = ModeLive
		c.openStreamLocked()
	case ModeHistory:
		if c.mode == ModeLive {
			c.stream.Close()
			c.mode = ModeHistory
			c.version++
		}
		c.beginFetchLocked()
	}
}

// Stop closes the live connection and cancels any in-flight fetch. Results
// that land afterwards are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.epoch++
	c.stream.Close()
	c.cancelFetchLocked()
	c.cancel()
	c.loading = false
	log.Info("viewmode Stop: controller stopped")
}

func (c *Controller) beginFetchLocked() {
	if c.fetchInFlight {
		log.Debug("viewmode beginFetch: fetch already in flight, epoch %d", c.epoch)
		return
	}
	c.epoch++
	epoch := c.epoch
	c.err = nil
	c.loading = true
	c.fetchInFlight = true
	ctx, cancel := context.WithCancel(c.ctx)
	c.fetchCancel = cancel

	go func() {
		defer cancel()
		series, err := c.fetcher.Fetch(ctx)
		c.finishFetch(epoch, series, err)
	}()
}

func (c *Controller) finishFetch(epoch uint64, series dmodels.Series, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		log.Debug("viewmode finishFetch: discarding stale result of epoch %d (current %d)", epoch, c.epoch)
		return
	}
	c.fetchInFlight = false
	c.fetchCancel = nil
	c.loading = false
	if err != nil {
		log.Error("viewmode finishFetch: fetcher.Fetch: %s", err.Error())
		if !errors.Is(err, history.ErrFetchFailed) {
			err = fmt.Errorf("%w: %s", history.ErrFetchFailed, err.Error())
		}
		c.err = err
		return
	}
	c.history = series
	c.version++
	c.updatedAt = time.Now()
	log.Info("viewmode finishFetch: history replaced, %d samples", len(series))
}

func (c *Controller) cancelFetchLocked() {
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	c.fetchInFlight = false
}

func (c *Controller) openStreamLocked() {
	c.epoch++
	c.err = nil
	c.loading = true
	c.version++
	// Open closes the previous handle and resets the buffer before dialing.
	c.stream.Open(c.ctx, c.epoch, c)
}

// SampleReceived implements live.Observer.
func (c *Controller) SampleReceived(epoch uint64, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.mode != ModeLive {
		return
	}
	if first {
		c.loading = false
	}
	c.version++
	c.updatedAt = time.Now()
}

// ConnectionLost implements live.Observer.
func (c *Controller) ConnectionLost(epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.mode != ModeLive {
		return
	}
	c.loading = false
	c.err = err
	log.Error("viewmode ConnectionLost: %s", err.Error())
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Version changes whenever the active series may have changed.
func (c *Controller) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Active returns a copy of the series that drives the display, along with the
// mode and version it belongs to.
func (c *Controller) Active() (dmodels.Series, Mode, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeLive {
		return c.stream.Samples(), c.mode, c.version
	}
	return c.history.Clone(), c.mode, c.version
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Mode:          c.mode,
		Loading:       c.loading,
		Error:         message(c.err),
		Epoch:         c.epoch,
		Version:       c.version,
		HistoryLength: len(c.history),
		LiveLength:    c.stream.Len(),
		LiveState:     c.stream.State(),
		FetchInFlight: c.fetchInFlight,
		UpdatedAt:     c.updatedAt,
	}
}

// message turns an error into the advisory text shown to users.
func message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, history.ErrFetchFailed):
		return MsgFetchFailed
	case errors.Is(err, live.ErrConnectionLost):
		return MsgLiveConnectionLost
	default:
		return err.Error()
	}
}
