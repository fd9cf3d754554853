package hierarchy

import (
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/typehierarchy-go/document"
)

// unscored marks a registration that has not been through a scoring pass.
const unscored = -1

type registration struct {
	id       string
	selector document.Selector
	provider Provider
	score    int
	order    uint64
}

// Registry ranks registered providers for documents and tracks the current
// model. All methods are safe for concurrent use.
type Registry struct {
	matcher document.Matcher
	log     atomic.Pointer[slog.Logger]
	now     func() time.Time

	mu      sync.Mutex
	clock   uint64
	entries []*registration
	byID    map[string]*registration
	// last is the identity scores were computed for; nil forces a rescore.
	last    *document.Identity
	current *Model
}

// Option configures a Registry.
type Option func(*Registry)

// WithMatcher sets the matcher used to score selectors. The default is a
// document.ScoreMatcher.
func WithMatcher(m document.Matcher) Option {
	return func(r *Registry) { r.matcher = m }
}

// WithLogger sets the logger for registration, model creation and expansion.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.SetLogger(l) }
}

// SetLogger replaces the registry logger. It is how the process-wide
// registry returned by Default gets one.
func (r *Registry) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	r.log.Store(l)
}

func (r *Registry) logger() *slog.Logger { return r.log.Load() }

// WithClock overrides the time source used to stamp models.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		matcher: &document.ScoreMatcher{},
		now:     time.Now,
		byID:    make(map[string]*registration),
	}
	r.log.Store(slog.New(slog.DiscardHandler))
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use. It is
// never torn down.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// RegisterOption configures a single registration.
type RegisterOption func(*registration)

// WithProviderID names the registration. Names let persisted model snapshots
// find their provider again; the default is "provider-<order>". Reusing a
// name rebinds it to the newer registration.
func WithProviderID(id string) RegisterOption {
	return func(reg *registration) { reg.id = id }
}

// Register adds provider for documents matching selector and returns the
// registration id. Registrations are never removed and are not deduplicated:
// registering the same provider twice yields two entries.
func (r *Registry) Register(selector document.Selector, provider Provider, opts ...RegisterOption) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	reg := &registration{
		selector: selector,
		provider: provider,
		score:    unscored,
		order:    r.clock,
	}
	for _, o := range opts {
		o(reg)
	}
	if reg.id == "" {
		reg.id = "provider-" + strconv.FormatUint(reg.order, 10)
	}
	r.entries = append(r.entries, reg)
	r.byID[reg.id] = reg
	// The new entry has no score for the cached identity.
	r.last = nil

	r.logger().Debug("provider registered", slog.String("provider", reg.id), slog.Uint64("order", reg.order))
	return reg.id
}

// Entry is one applicable registration as returned by Entries.
type Entry struct {
	ID       string
	Provider Provider
	Score    int
}

// Ordered returns the providers applicable to doc, best first.
func (r *Registry) Ordered(doc document.Document) []Provider {
	entries := r.Entries(doc)
	out := make([]Provider, len(entries))
	for i, e := range entries {
		out[i] = e.Provider
	}
	return out
}

// Entries is Ordered with registration ids and scores.
func (r *Registry) Entries(doc document.Document) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := doc.Identity()
	if r.last == nil || *r.last != id {
		for _, reg := range r.entries {
			reg.score = r.matcher.Match(reg.selector, doc)
		}
		slices.SortFunc(r.entries, func(a, b *registration) int {
			if a.score != b.score {
				return b.score - a.score
			}
			switch {
			case a.order > b.order:
				return -1
			case a.order < b.order:
				return 1
			}
			return 0
		})
		r.last = &id
	}

	var out []Entry
	for _, reg := range r.entries {
		if reg.score <= 0 {
			// Sorted: nothing after this applies.
			break
		}
		out = append(out, Entry{ID: reg.id, Provider: reg.provider, Score: reg.score})
	}
	return out
}

// Lookup returns the provider of the named registration.
func (r *Registry) Lookup(id string) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return reg.provider, true
}

// Selectors returns the selectors of all registrations in registration order.
func (r *Registry) Selectors() []document.Selector {
	r.mu.Lock()
	regs := slices.Clone(r.entries)
	r.mu.Unlock()

	slices.SortFunc(regs, func(a, b *registration) int {
		switch {
		case a.order < b.order:
			return -1
		case a.order > b.order:
			return 1
		}
		return 0
	})
	out := make([]document.Selector, len(regs))
	for i, reg := range regs {
		out[i] = reg.selector
	}
	return out
}

// Current returns the model of the most recently completed successful
// prepare, or nil.
func (r *Registry) Current() *Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Registry) setCurrent(m *Model) {
	r.mu.Lock()
	r.current = m
	r.mu.Unlock()
}
