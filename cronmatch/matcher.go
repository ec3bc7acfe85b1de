// Package cronmatch decides whether a cron schedule fired within the
// trailing evaluation window and computes next occurrences.
//
// Firing is a property of "did a tick happen in the window just evaluated",
// not of exact-minute equality, so small clock skew between the external
// cadence and wall time does not drop ticks.
package cronmatch

import (
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// DefaultWindow is the expected dispatch cadence. An occurrence counts as
// fired iff it happened within this interval before the evaluation instant.
const DefaultWindow = time.Minute

// cronParser supports standard 5-field cron and descriptors like "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseExpression parses a cron expression and returns its schedule.
// Exported so callers can validate user input at edit time.
func ParseExpression(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWindow sets the evaluation window. Zero or negative values fall back
// to DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.window = d
		}
	}
}

// Matcher evaluates cron expressions against evaluation instants.
// It is safe for concurrent use; parsed expressions are cached.
type Matcher struct {
	window time.Duration

	mu     sync.RWMutex
	parsed map[string]cronlib.Schedule
}

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		window: DefaultWindow,
		parsed: make(map[string]cronlib.Schedule),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Window returns the configured evaluation window.
func (m *Matcher) Window() time.Duration { return m.window }

// ShouldTrigger reports whether the expression, evaluated in the given
// timezone, has an occurrence t with now-window < t <= now. A malformed
// expression or unknown timezone never panics or escapes: it returns
// (false, err) so the caller can log and move on.
func (m *Matcher) ShouldTrigger(expr, timezone string, now time.Time) (bool, error) {
	sched, loc, err := m.resolve(expr, timezone)
	if err != nil {
		return false, err
	}

	// Next is strictly-after, so seeding it at now-window yields the first
	// occurrence inside (now-window, ...). Fired iff that lands at or
	// before now.
	next := sched.Next(now.In(loc).Add(-m.window))
	if next.IsZero() {
		return false, nil
	}
	return !next.After(now), nil
}

// NextOccurrence returns the next occurrence strictly after from, in the
// schedule's timezone, normalized to UTC. Returns nil if the schedule has
// no future occurrence.
//
// Callers must pass "now", not the triggering timestamp: computing the next
// run from a delayed trigger time would schedule a recurrence of the tick
// just processed.
func (m *Matcher) NextOccurrence(expr, timezone string, from time.Time) (*time.Time, error) {
	sched, loc, err := m.resolve(expr, timezone)
	if err != nil {
		return nil, err
	}

	next := sched.Next(from.In(loc))
	if next.IsZero() {
		return nil, nil
	}
	next = next.UTC()
	return &next, nil
}

// resolve parses (or fetches the cached parse of) the expression and loads
// the timezone. An empty timezone means UTC.
func (m *Matcher) resolve(expr, timezone string) (cronlib.Schedule, *time.Location, error) {
	sched, err := m.getOrParse(expr)
	if err != nil {
		return nil, nil, fmt.Errorf("cronmatch: parse %q: %w", expr, err)
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, nil, fmt.Errorf("cronmatch: load timezone %q: %w", timezone, err)
		}
	}
	return sched, loc, nil
}

func (m *Matcher) getOrParse(expr string) (cronlib.Schedule, error) {
	m.mu.RLock()
	sched, ok := m.parsed[expr]
	m.mu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseExpression(expr)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.parsed[expr] = sched
	m.mu.Unlock()
	return sched, nil
}
