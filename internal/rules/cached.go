package rules

import (
	"context"
	"strconv"
	"time"

	"github.com/kanata-switcher/kanata-focusd/internal/cachemanager"
)

// matchCacheTTL bounds how long a memoized plan survives. It only needs to
// outlast a backend's poll tick, not a genuine focus change that happens to
// reuse an already-cached key (switching back to a previously-focused
// window): a short TTL means that case simply falls through to a fresh
// (cheap) Match rather than risking a stale plan.
const matchCacheTTL = 2 * time.Second

type matchInput struct {
	set          *Set
	event        FocusEvent
	nativeTTY    bool
	defaultLayer string
}

func computeMatch(_ context.Context, in matchInput) (FocusActions, error) {
	return in.set.Match(in.event, in.nativeTTY, in.defaultLayer), nil
}

// CachedMatcher memoizes Set.Match behind a read-through cache. Some
// backend adapters (anything poll-driven rather than event-driven) re-emit
// the same FocusEvent on every tick; without memoizing, every tick would
// force a fresh regex pass over every WindowRule for no observable
// benefit, since the plan is necessarily identical.
type CachedMatcher struct {
	cache *cachemanager.ReadThroughCache[string, FocusActions, matchInput]
}

// NewCachedMatcher builds a matcher with a short-TTL in-memory read-through
// cache. The set argument is not retained: the Set is supplied again on
// every Match call.
func NewCachedMatcher(set *Set) *CachedMatcher {
	backing := cachemanager.NewInMemoryCacheManager[string, FocusActions]("rule-match", matchCacheTTL, matchCacheTTL*2)
	return &CachedMatcher{
		cache: cachemanager.NewReadThroughCache[string, FocusActions, matchInput](backing, computeMatch, false),
	}
}

// Match returns the same plan Set.Match would, served from cache when an
// identical (event, nativeTTY, defaultLayer) tuple was computed within
// matchCacheTTL. The set is not part of the cache key, so one CachedMatcher
// returns correct plans only when it is always called with the same Set.
func (m *CachedMatcher) Match(set *Set, event FocusEvent, nativeTTY bool, defaultLayer string) FocusActions {
	in := matchInput{set: set, event: event, nativeTTY: nativeTTY, defaultLayer: defaultLayer}
	// Get never returns an error: computeMatch is infallible.
	actions, _ := m.cache.Get(context.Background(), matchKey(event, nativeTTY, defaultLayer), in, matchCacheTTL)
	return actions
}

func matchKey(event FocusEvent, nativeTTY bool, defaultLayer string) string {
	return event.WindowClass + "\x1f" + event.WindowTitle + "\x1f" + strconv.FormatBool(nativeTTY) + "\x1f" + defaultLayer
}
