package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sudachi-dev/cardscan/chip"
	"github.com/sudachi-dev/cardscan/scanerr"
)

// fakeConn replays scripted chip responses and records whether it was
// closed, so multi-tag handling can be asserted.
type fakeConn struct {
	mu        sync.Mutex
	responses [][]byte
	closed    bool
}

func (c *fakeConn) Transceive(_ context.Context, _ []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDetector returns one scripted poll result per call, blocking on the
// context once the script runs out.
type fakeDetector struct {
	mu    sync.Mutex
	polls []func() ([]TagConn, error)
	calls int
}

func (d *fakeDetector) Poll(ctx context.Context) ([]TagConn, error) {
	d.mu.Lock()
	var next func() ([]TagConn, error)
	if len(d.polls) > 0 {
		next = d.polls[0]
		d.polls = d.polls[1:]
	}
	d.calls++
	d.mu.Unlock()
	if next == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return next()
}

func (d *fakeDetector) pollCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func okResp(data ...byte) []byte { return append(data, 0x90, 0x00) }

// fullSequence scripts the responses for a complete successful chip read.
func fullSequence() [][]byte {
	return [][]byte{
		okResp(),                     // SELECT application
		okResp(),                     // VERIFY
		okResp(),                     // SELECT EF01
		okResp(0xC1, 0x01, 0x31),     // READ common
		okResp(),                     // SELECT EF02
		okResp(0xC2, 0x01, 0x31),     // READ card kind
		okResp(),                     // SELECT child application
		okResp(),                     // SELECT DF1/EF01
		okResp(0xC4, 0x01, 0x41),     // READ personal
	}
}

func fastConfig() Config {
	return Config{Timeout: 2 * time.Second, PollAttempts: 5, PollDelay: time.Millisecond}
}

func TestBeginScanSuccess(t *testing.T) {
	conn := &fakeConn{responses: fullSequence()}
	det := &fakeDetector{polls: []func() ([]TagConn, error){
		func() ([]TagConn, error) { return []TagConn{conn}, nil },
	}}

	rec, err := NewClient(det, fastConfig()).BeginScan(context.Background(), "ab1234 5678cd")
	if err != nil {
		t.Fatalf("BeginScan error = %v", err)
	}
	if len(rec.Files) != 3 {
		t.Fatalf("got %d files, want 3", len(rec.Files))
	}
	if !conn.closed {
		t.Fatalf("connection was not closed after the read")
	}
}

func TestBeginScanInvalidNumberBeforeRadio(t *testing.T) {
	det := &fakeDetector{}
	_, err := NewClient(det, fastConfig()).BeginScan(context.Background(), "TOO-SHORT")
	if scanerr.KindOf(err) != scanerr.KindInvalidCardNumber {
		t.Fatalf("error = %v, want invalid card number", err)
	}
	if det.pollCount() != 0 {
		t.Fatalf("detector was polled %d times for malformed input", det.pollCount())
	}
}

func TestBeginScanMultiTagRepolls(t *testing.T) {
	extraA := &fakeConn{}
	extraB := &fakeConn{}
	conn := &fakeConn{responses: fullSequence()}
	det := &fakeDetector{polls: []func() ([]TagConn, error){
		func() ([]TagConn, error) { return []TagConn{extraA, extraB}, nil },
		func() ([]TagConn, error) { return nil, nil },
		func() ([]TagConn, error) { return []TagConn{conn}, nil },
	}}

	rec, err := NewClient(det, fastConfig()).BeginScan(context.Background(), "AB12345678CD")
	if err != nil {
		t.Fatalf("BeginScan error = %v", err)
	}
	if len(rec.Files) != 3 {
		t.Fatalf("got %d files, want 3", len(rec.Files))
	}
	if !extraA.closed || !extraB.closed {
		t.Fatalf("multi-tag connections were not closed")
	}
	if det.pollCount() != 3 {
		t.Fatalf("detector polled %d times, want 3", det.pollCount())
	}
}

func TestBeginScanPollAttemptsExhausted(t *testing.T) {
	det := &fakeDetector{polls: []func() ([]TagConn, error){
		func() ([]TagConn, error) { return nil, nil },
		func() ([]TagConn, error) { return nil, nil },
	}}
	cfg := fastConfig()
	cfg.PollAttempts = 2

	_, err := NewClient(det, cfg).BeginScan(context.Background(), "AB12345678CD")
	if scanerr.KindOf(err) != scanerr.KindCardNotDetected {
		t.Fatalf("error = %v, want card not detected", err)
	}
}

func TestBeginScanCancellation(t *testing.T) {
	det := &fakeDetector{} // blocks until the context ends
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient(det, fastConfig()).BeginScan(ctx, "AB12345678CD")
	if scanerr.KindOf(err) != scanerr.KindUserCancelled {
		t.Fatalf("error = %v, want user cancelled", err)
	}
}

func TestBeginScanTimeout(t *testing.T) {
	det := &fakeDetector{}
	cfg := fastConfig()
	cfg.Timeout = 30 * time.Millisecond

	_, err := NewClient(det, cfg).BeginScan(context.Background(), "AB12345678CD")
	if scanerr.KindOf(err) != scanerr.KindSessionTimeout {
		t.Fatalf("error = %v, want session timeout", err)
	}
}

func TestBeginScanSingleSession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	det := &fakeDetector{polls: []func() ([]TagConn, error){
		func() ([]TagConn, error) {
			close(started)
			<-release
			conn := &fakeConn{responses: fullSequence()}
			return []TagConn{conn}, nil
		},
	}}
	client := NewClient(det, fastConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = client.BeginScan(context.Background(), "AB12345678CD")
	}()

	<-started
	_, err := client.BeginScan(context.Background(), "AB12345678CD")
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("concurrent BeginScan error = %v, want ErrSessionActive", err)
	}
	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first session error = %v", firstErr)
	}

	// The reader is free again once the first session resolved.
	det.mu.Lock()
	det.polls = []func() ([]TagConn, error){
		func() ([]TagConn, error) {
			return []TagConn{&fakeConn{responses: fullSequence()}}, nil
		},
	}
	det.mu.Unlock()
	if _, err := client.BeginScan(context.Background(), "AB12345678CD"); err != nil {
		t.Fatalf("follow-up session error = %v", err)
	}
}

func TestSessionResolvesOnce(t *testing.T) {
	sess := newSession()
	if !sess.resolve(chip.Record{}, nil) {
		t.Fatalf("first resolve did not win")
	}
	if sess.resolve(chip.Record{}, errors.New("late")) {
		t.Fatalf("second resolve won the consumed flag")
	}
	out := <-sess.done
	if out.err != nil {
		t.Fatalf("delivered outcome = %v, want the first one", out.err)
	}
}
