package loki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/kiranshivaraju/loglens/pkg/models"
)

const defaultPollLimit = 5000

// ErrLineRejected wraps a LineProcessor failure returned from Poll.
var ErrLineRejected = errors.New("loki line rejected by processor")

// LineProcessor accepts one raw log line. *analyzer.StreamAnalyzer satisfies it.
type LineProcessor interface {
	ProcessLog(ctx context.Context, line string) (*models.Analysis, error)
}

// Poller tails a LogQL query by repeatedly querying the window since the
// last entry it saw and pushing each line into a LineProcessor.
type Poller struct {
	client   Client
	query    string
	interval time.Duration
	limit    int
	proc     LineProcessor
	now      func() time.Time

	cursor time.Time
	// seen counts the lines already processed at exactly cursor.
	seen map[string]int
	// resume starts the next window at cursor instead of just after it.
	resume bool
}

func NewPoller(client Client, query string, interval time.Duration, proc LineProcessor) *Poller {
	return &Poller{
		client:   client,
		query:    query,
		interval: interval,
		limit:    defaultPollLimit,
		proc:     proc,
		now:      time.Now,
		seen:     make(map[string]int),
	}
}

// Run polls every interval until ctx is done. Query failures are logged and
// retried on the next tick; a processor error stops the poller.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("loki poller started", "query", p.query, "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrLineRejected) {
				return err
			}
			slog.Warn("loki poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one query and feeds the returned lines in timestamp order. It
// returns the number of lines processed.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	end := p.now().UTC()
	var start time.Time
	switch {
	case p.cursor.IsZero():
		start = end.Add(-p.interval)
	case p.resume:
		start = p.cursor
	default:
		start = p.cursor.Add(time.Nanosecond)
	}

	entries, err := p.client.QueryRange(ctx, QueryRangeRequest{
		Query:     p.query,
		Start:     start,
		End:       end,
		Limit:     p.limit,
		Direction: "forward",
	})
	if err != nil {
		return 0, err
	}

	skip := maps.Clone(p.seen)
	n := 0
	for _, e := range entries {
		if e.Timestamp.Before(p.cursor) {
			continue
		}
		if e.Timestamp.Equal(p.cursor) && skip[e.Line] > 0 {
			skip[e.Line]--
			continue
		}
		if _, err := p.proc.ProcessLog(ctx, e.Line); err != nil {
			p.resume = true
			return n, fmt.Errorf("%w: %w", ErrLineRejected, err)
		}
		n++
		if e.Timestamp.After(p.cursor) {
			p.cursor = e.Timestamp
			clear(p.seen)
			clear(skip)
		}
		p.seen[e.Line]++
	}

	switch {
	case len(entries) < p.limit:
		// The window is exhausted up to end.
		p.resume = false
		if end.After(p.cursor) {
			p.cursor = end
			clear(p.seen)
		}
	case n == 0:
		// A full page of lines already seen at one timestamp cannot make
		// progress; step past it.
		slog.Warn("loki page repeats one timestamp, skipping ahead", "timestamp", p.cursor)
		p.resume = false
		clear(p.seen)
	default:
		// More lines may share the last timestamp; re-read from it.
		p.resume = true
	}
	return n, nil
}
