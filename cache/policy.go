package cache

import "time"

// Policy configures staleness and retention of cache entries.
type Policy struct {
	// StaleTime is the age after which an entry is refetched when it gains
	// its first subscriber. If zero, entries only go stale through invalidation.
	StaleTime time.Duration

	// GracePeriod is how long an entry with no subscribers is kept before
	// eviction. If zero, unused entries are evicted immediately.
	GracePeriod time.Duration

	// MaxGracePeriod clamps per-endpoint grace overrides.
	// If zero, no maximum is enforced.
	MaxGracePeriod time.Duration

	// FetchTimeout bounds a single fetch on top of the adapter's own timeout.
	// If zero, the adapter alone guarantees resolution.
	FetchTimeout time.Duration

	// RefetchOnSubscribe refetches on every first subscriber, regardless of age.
	RefetchOnSubscribe bool
}

// DefaultPolicy returns the default cache policy.
// StaleTime: 60 seconds, GracePeriod: 60 seconds, MaxGracePeriod: 1 hour
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:      60 * time.Second,
		GracePeriod:    60 * time.Second,
		MaxGracePeriod: 1 * time.Hour,
	}
}

// NoCachePolicy returns a policy that refetches on every mount and drops
// entries as soon as they are unused.
func NoCachePolicy() Policy {
	return Policy{
		RefetchOnSubscribe: true,
	}
}

// EffectiveGrace returns the grace period to use, applying defaults and clamping.
func (p Policy) EffectiveGrace(override time.Duration) time.Duration {
	grace := override
	if grace <= 0 {
		grace = p.GracePeriod
	}

	if p.MaxGracePeriod > 0 && grace > p.MaxGracePeriod {
		grace = p.MaxGracePeriod
	}

	return grace
}

// EffectiveStaleTime returns the stale time to use for an endpoint override.
func (p Policy) EffectiveStaleTime(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return p.StaleTime
}

// NeedsFetch reports whether snap should be fetched for a new subscriber.
func (p Policy) NeedsFetch(snap Snapshot, now time.Time, staleOverride time.Duration) bool {
	switch snap.Status {
	case StatusLoading:
		return false
	case StatusIdle, StatusError:
		return true
	}

	if snap.Stale || p.RefetchOnSubscribe {
		return true
	}

	staleTime := p.EffectiveStaleTime(staleOverride)
	return staleTime > 0 && now.Sub(snap.FetchedAt) >= staleTime
}
