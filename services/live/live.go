package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/log"
)

const Path = "/sse/rate"

var (
	ErrConnectionLost = errors.New("live connection lost")
	errServerClosed   = errors.New("stream closed by server")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "idle"
	}
}

// Observer receives handle events. Calls are made without the consumer lock
// held and carry the epoch passed to Open.
type Observer interface {
	SampleReceived(epoch uint64, first bool)
	ConnectionLost(epoch uint64, err error)
}

type (
	Consumer struct {
		client *http.Client
		url    string

		mu      sync.Mutex
		buffer  *dmodels.LiveBuffer
		current *handle
	}

	handle struct {
		epoch    uint64
		cancel   context.CancelFunc
		state    State
		received bool
	}
)

// NewConsumer builds a consumer for {apiBase}/sse/rate. The client must not
// carry a Timeout, the stream is long-lived.
func NewConsumer(client *http.Client, apiBase string, capacity int) *Consumer {
	if client == nil {
		client = &http.Client{}
	}
	return &Consumer{
		client: client,
		url:    apiBase + Path,
		buffer: dmodels.NewLiveBuffer(capacity),
	}
}

// HandleMessage decodes one event payload and appends it to buf. On error buf
// is left untouched.
func HandleMessage(buf *dmodels.LiveBuffer, data []byte) error {
	s, err := dmodels.DecodeSample(data)
	if err != nil {
		return err
	}
	buf.Push(s)
	return nil
}

// Open closes any open handle, empties the buffer and starts a new connection.
func (c *Consumer) Open(ctx context.Context, epoch uint64, obs Observer) {
	hctx, cancel := context.WithCancel(ctx)
	h := &handle{epoch: epoch, cancel: cancel, state: StateConnecting}

	c.mu.Lock()
	c.closeLocked()
	c.buffer.Reset()
	c.current = h
	c.mu.Unlock()

	log.Debug("live Open: epoch %d connecting to %s", epoch, c.url)
	go c.run(hctx, h, obs)
}

// Close is idempotent. Once it returns the closed handle no longer mutates
// the buffer.
func (c *Consumer) Close() {
	c.mu.Lock()
	closed := c.closeLocked()
	c.mu.Unlock()
	if closed {
		log.Debug("live Close: connection closed")
	}
}

func (c *Consumer) closeLocked() bool {
	h := c.current
	if h == nil || h.done() {
		return false
	}
	h.state = StateClosed
	h.cancel()
	return true
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateIdle
	}
	return c.current.state
}

// Samples returns a copy of the buffer, oldest first.
func (c *Consumer) Samples() dmodels.Series {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Samples()
}

func (c *Consumer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Len()
}

func (c *Consumer) run(ctx context.Context, h *handle, obs Observer) {
	err := c.stream(ctx, h, obs)

	c.mu.Lock()
	if h.done() {
		c.mu.Unlock()
		return
	}
	h.state = StateErrored
	h.cancel()
	c.mu.Unlock()

	log.Warn("live run: epoch %d: %s", h.epoch, err.Error())
	if obs != nil {
		obs.ConnectionLost(h.epoch, fmt.Errorf("%w: %s", ErrConnectionLost, err.Error()))
	}
}

func (c *Consumer) stream(ctx context.Context, h *handle, obs Observer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("http.NewRequest: %s", err.Error())
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("client.Do: %s", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.mu.Lock()
	if h.state == StateConnecting {
		h.state = StateOpen
	}
	c.mu.Unlock()

	events := newEventReader(resp.Body)
	for {
		data, err := events.Next()
		if err == io.EOF {
			return errServerClosed
		}
		if errors.Is(err, errEventTooLarge) {
			log.Debug("live stream: epoch %d: dropping event: %s", h.epoch, err.Error())
			continue
		}
		if err != nil {
			return fmt.Errorf("read: %s", err.Error())
		}
		c.apply(h, data, obs)
	}
}

func (c *Consumer) apply(h *handle, data []byte, obs Observer) {
	c.mu.Lock()
	if c.current != h || h.done() {
		c.mu.Unlock()
		return
	}
	if err := HandleMessage(c.buffer, data); err != nil {
		c.mu.Unlock()
		log.Debug("live apply: dropping event: %s", err.Error())
		return
	}
	first := !h.received
	h.received = true
	c.mu.Unlock()

	if obs != nil {
		obs.SampleReceived(h.epoch, first)
	}
}

func (h *handle) done() bool {
	return h.state == StateClosed || h.state == StateErrored
}
