// Package monitor defines core types shared across subsystems and
// implements rule compilation, item filtering and the scan cycle.
package monitor

import (
	"context"
	"sync/atomic"
	"time"
)

// Rule is one compiled keyword-monitoring specification. An empty
// Keyword matches every title; the "re:" prefix marks a regular
// expression. Rules are immutable once compiled.
type Rule struct {
	Keyword       string
	SearchKey     *string
	FilterWords   []string
	MinPrice      *float64
	MaxPrice      *float64
	LowCommentNum int
	LowWorthyNum  int
}

// RuleSet is the full compiled collection of rules for one scan
// session. It is never mutated; reloads replace the whole set.
type RuleSet struct {
	Rules      []Rule
	SatisfyNum int
}

// ActiveSet holds the currently active RuleSet behind an atomic
// pointer. The crawl loop reads it before each rule, so a swap during
// a cycle only affects rules not yet processed in that cycle.
type ActiveSet struct {
	p atomic.Pointer[RuleSet]
}

// Load returns the current rule set, or nil before the first Store.
func (a *ActiveSet) Load() *RuleSet {
	return a.p.Load()
}

// Store atomically replaces the active rule set.
func (a *ActiveSet) Store(rs *RuleSet) {
	a.p.Store(rs)
}

// Item is one product candidate returned by the search endpoint. It
// only lives for the duration of one page's filtering; survivors are
// recorded into history and carried in the notification batch.
type Item struct {
	ID          string
	Title       string
	PriceText   string
	WorthyText  string
	CommentText string
	PublishedAt int64 // unix seconds
	URL         string
}

// History records previously notified item ids for deduplication.
type History interface {
	Seen(id string) bool
	Record(id string, firstSeenMillis int64)
	Save() error
	Len() int
}

// Searcher fetches one result page for a literal query string.
// Offset is the absolute item offset, not a page index.
type Searcher interface {
	Search(ctx context.Context, keyword string, offset int) ([]Item, error)
}

// Notifier delivers one cycle's batch of new hits.
type Notifier interface {
	Notify(ctx context.Context, items []Item) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
