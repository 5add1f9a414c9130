package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/chip"
	"github.com/sudachi-dev/cardscan/observability"
	"github.com/sudachi-dev/cardscan/scanerr"
)

// TagConn is an open connection to a single detected tag.
type TagConn interface {
	chip.Transceiver
	Close() error
}

// Detector abstracts the platform polling capability. Poll blocks until at
// least one tag is in the field or the context ends; it may return several
// connections when multiple tags were detected at once.
type Detector interface {
	Poll(ctx context.Context) ([]TagConn, error)
}

// ErrSessionActive is returned when BeginScan is called while another scan
// attempt owns the reader.
var ErrSessionActive = errors.New("transport: a scan session is already active")

// Config tunes a Client. Zero values fall back to the defaults below.
type Config struct {
	// Timeout bounds the whole session from BeginScan to resolution.
	Timeout time.Duration
	// PollAttempts bounds how often polling restarts after an empty or
	// multi-tag detection before the attempt is abandoned.
	PollAttempts uint
	// PollDelay spaces polling rounds.
	PollDelay time.Duration
	Log       observability.Logger
	Tracer    observability.Tracer
}

const (
	defaultTimeout      = 60 * time.Second
	defaultPollAttempts = 20
	defaultPollDelay    = 250 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.PollAttempts == 0 {
		c.PollAttempts = defaultPollAttempts
	}
	if c.PollDelay <= 0 {
		c.PollDelay = defaultPollDelay
	}
	c.Log = observability.OrNop(c.Log)
	if c.Tracer == nil {
		c.Tracer = observability.NopTracer()
	}
	return c
}

// Client coordinates scan sessions over one physical reader. At most one
// session is active at a time; concurrent BeginScan calls beyond the first
// fail with ErrSessionActive.
type Client struct {
	det    Detector
	cfg    Config
	active atomic.Bool
}

func NewClient(det Detector, cfg Config) *Client {
	return &Client{det: det, cfg: cfg.withDefaults()}
}

// BeginScan validates the card number, opens a session and reads the chip.
// It suspends until the record is read or the session ends in cancellation,
// timeout, or a protocol error — each mapped to its own error kind.
func (c *Client) BeginScan(ctx context.Context, cardNumber string) (chip.Record, error) {
	number := carddata.NormalizeCardNumber(cardNumber)
	if !carddata.IsCardNumberValid(number) {
		// No radio activity for malformed input.
		return chip.Record{}, scanerr.Wrap(scanerr.KindInvalidCardNumber, "transport",
			fmt.Errorf("card number must be 12 alphanumeric characters"))
	}
	if !c.active.CompareAndSwap(false, true) {
		return chip.Record{}, ErrSessionActive
	}
	defer c.active.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	sess := newSession()
	log := c.cfg.Log.With(observability.String("session", sess.id))
	log.Debug("scan session opened")

	start := time.Now()
	go c.run(ctx, sess, number, log)

	select {
	case out := <-sess.done:
		log.Debug("scan session resolved",
			observability.Duration(observability.MetricSessionDuration, time.Since(start)),
			observability.Error("error", out.err))
		return out.rec, out.err
	case <-ctx.Done():
		// The session may still resolve concurrently; whichever path wins
		// the consumed flag delivers the single outcome.
		sess.resolve(chip.Record{}, mapContextErr(ctx.Err()))
		out := <-sess.done
		log.Debug("scan session ended by context",
			observability.Duration(observability.MetricSessionDuration, time.Since(start)),
			observability.Error("error", out.err))
		return out.rec, out.err
	}
}

// run polls for a tag and drives the chip sequence, resolving the session
// exactly once.
func (c *Client) run(ctx context.Context, sess *session, number string, log observability.Logger) {
	conn, err := c.detectSingleTag(ctx, log)
	if err != nil {
		sess.resolve(chip.Record{}, err)
		return
	}
	defer conn.Close()

	sctx, span := c.cfg.Tracer.StartSpan(ctx, "chip.read")
	rec, err := chip.NewSequencer(conn, log).ReadCard(sctx, number)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
	sess.resolve(rec, err)
}

// detectSingleTag polls until exactly one tag is in the field. A multi-tag
// detection is the one retry-without-error case: extra connections are
// closed and polling resumes instead of surfacing a failure.
func (c *Client) detectSingleTag(ctx context.Context, log observability.Logger) (TagConn, error) {
	var conn TagConn
	err := retry.Do(
		func() error {
			conns, err := c.det.Poll(ctx)
			if err != nil {
				return scanerr.Wrap(scanerr.KindCardNotDetected, "transport.poll", err)
			}
			switch len(conns) {
			case 0:
				return scanerr.New(scanerr.KindCardNotDetected, "transport.poll")
			case 1:
				conn = conns[0]
				return nil
			default:
				for _, extra := range conns {
					extra.Close()
				}
				log.Warn("multiple tags detected, resuming polling",
					observability.Int("tags", len(conns)))
				return scanerr.New(scanerr.KindMultipleTagsDetected, "transport.poll")
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.PollAttempts),
		retry.Delay(c.cfg.PollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			k := scanerr.KindOf(err)
			return k == scanerr.KindCardNotDetected || k == scanerr.KindMultipleTagsDetected
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, mapContextErr(ctxErr)
		}
		return nil, err
	}
	return conn, nil
}

func mapContextErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return scanerr.Wrap(scanerr.KindSessionTimeout, "transport", err)
	case errors.Is(err, context.Canceled):
		return scanerr.Wrap(scanerr.KindUserCancelled, "transport", err)
	default:
		return scanerr.Wrap(scanerr.KindReadFailed, "transport", err)
	}
}
