package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

type stubNumberFinder struct {
	last     string
	err      error
	gotStart time.Time
	gotEnd   time.Time
}

func (s *stubNumberFinder) LastOrderNumberOfDay(_ context.Context, start, end time.Time) (string, error) {
	s.gotStart = start
	s.gotEnd = end
	return s.last, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOrderNumberNext(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 29, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		last string
		want string
	}{
		{name: "first order of the day", last: "", want: "EX260829001"},
		{name: "increments last sequence", last: "EX260829004", want: "EX260829005"},
		{name: "malformed last number restarts at one", last: "EXoops", want: "EX260829001"},
		{name: "sequence wraps modulo 1000", last: "EX260829999", want: "EX260829000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			finder := &stubNumberFinder{last: tt.last}
			gen := newOrderNumberGenerator(finder, fixedClock(day))

			got, err := gen.Next(context.Background())
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Next() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOrderNumberNextQueriesUTCDayWindow(t *testing.T) {
	t.Parallel()

	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2026, time.August, 28, 23, 30, 0, 0, loc)

	finder := &stubNumberFinder{}
	gen := newOrderNumberGenerator(finder, fixedClock(now))

	got, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got != "EX260829001" {
		t.Fatalf("Next() = %q, want EX260829001", got)
	}

	wantStart := time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC)
	if !finder.gotStart.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v", finder.gotStart, wantStart)
	}
	if !finder.gotEnd.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Fatalf("window end = %v, want %v", finder.gotEnd, wantStart.AddDate(0, 0, 1))
	}
}

func TestOrderNumberNextPropagatesStoreError(t *testing.T) {
	t.Parallel()

	finder := &stubNumberFinder{err: errors.New("connection refused")}
	gen := newOrderNumberGenerator(finder, nil)

	if _, err := gen.Next(context.Background()); err == nil {
		t.Fatal("Next() expected error, got nil")
	}
}

func TestOrderNumberFallbackFormat(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	gen := newOrderNumberGenerator(&stubNumberFinder{}, fixedClock(day))

	pattern := regexp.MustCompile(`^EX260829\d{3}$`)
	for range 20 {
		if got := gen.Fallback(); !pattern.MatchString(got) {
			t.Fatalf("Fallback() = %q, want match for %s", got, pattern)
		}
	}
}

func TestParseOrderNumberSeq(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{in: "EX260829042", want: 42, wantOK: true},
		{in: "EX260829999", want: 999, wantOK: true},
		{in: "EX260829abc", wantOK: false},
		{in: "42", want: 42, wantOK: true},
		{in: "x", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := parseOrderNumberSeq(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("parseOrderNumberSeq(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
