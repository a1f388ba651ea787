package deviceflow

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is a deterministic clock. NewTimer advances the clock to the
// timer's deadline and returns an already-fired timer, so the polling
// engine runs tick after tick without real waiting.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	c.now = c.now.Add(d)
	fireAt := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- fireAt
	return firedTimer{ch: ch}
}

type firedTimer struct {
	ch chan time.Time
}

func (t firedTimer) C() <-chan time.Time { return t.ch }
func (t firedTimer) Stop() bool          { return false }

// netErrReply makes scriptedDoer fail the request at the transport level.
const netErrReply = "\x00network"

// scriptedDoer replays canned token endpoint bodies in order, repeating the
// last one. Bodies containing an "error" member answer with status 400.
type scriptedDoer struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.calls
	if idx >= len(d.replies) {
		idx = len(d.replies) - 1
	}
	d.calls++

	body := d.replies[idx]
	if body == netErrReply {
		return nil, io.ErrUnexpectedEOF
	}

	status := http.StatusOK
	if strings.Contains(body, `"error"`) {
		status = http.StatusBadRequest
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (d *scriptedDoer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// newTestClient builds a client on the fake clock and scripted transport.
func newTestClient(t *testing.T, clock Clock, doer Doer, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithClock(clock), WithHTTPClient(doer)}
	c, err := NewClient("test-client", "https://auth.example.com", append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}
