package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Order numbers are day-scoped: EX{yy}{mm}{dd}{seq}, where seq is a 3-digit
// sequence that resets each UTC calendar day. The sequence is derived from
// the newest order of the day; the unique index on order_number plus
// insert-retry closes the read-then-write race.
const (
	orderNumberPrefix = "EX"
	orderNumberSeqLen = 3
)

type lastOrderNumberFinder interface {
	LastOrderNumberOfDay(ctx context.Context, start, end time.Time) (string, error)
}

type orderNumberGenerator struct {
	store lastOrderNumberFinder
	now   func() time.Time
}

func newOrderNumberGenerator(store lastOrderNumberFinder, now func() time.Time) *orderNumberGenerator {
	if now == nil {
		now = time.Now
	}
	return &orderNumberGenerator{store: store, now: now}
}

// Next computes the next sequential order number for the current day.
func (g *orderNumberGenerator) Next(ctx context.Context) (string, error) {
	now := g.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	last, err := g.store.LastOrderNumberOfDay(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to find last order of day: %w", err)
	}

	seq := 1
	if parsed, ok := parseOrderNumberSeq(last); ok {
		seq = parsed + 1
	}

	return formatOrderNumber(now, seq), nil
}

// Fallback returns a random-suffix order number. It is the last resort after
// sequential retries keep colliding, never the primary path.
func (g *orderNumberGenerator) Fallback() string {
	max := big.NewInt(1000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to the clock for the last three digits.
		return formatOrderNumber(g.now().UTC(), g.now().Nanosecond()%1000)
	}
	return formatOrderNumber(g.now().UTC(), int(n.Int64()))
}

func formatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%02d%02d%02d%0*d",
		orderNumberPrefix, day.Year()%100, int(day.Month()), day.Day(), orderNumberSeqLen, seq%1000)
}

// parseOrderNumberSeq extracts the trailing 3-digit sequence from an order
// number. Malformed numbers report false and the sequence restarts at 1.
func parseOrderNumberSeq(orderNumber string) (int, bool) {
	if len(orderNumber) < orderNumberSeqLen {
		return 0, false
	}
	suffix := orderNumber[len(orderNumber)-orderNumberSeqLen:]
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
