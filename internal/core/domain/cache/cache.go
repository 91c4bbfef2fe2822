package cache

import (
	"fmt"
	"time"
)

// MaxLifetime is the longest TTL ever set on a record (30 days).
const MaxLifetime = 2592000 * time.Second

// CleanMode selects how Clean invalidates entries.
type CleanMode string

const (
	// CleanAll wipes every record and index of the engine's namespace.
	CleanAll CleanMode = "all"
	// CleanOld runs the garbage collection sweep over the tag index.
	CleanOld CleanMode = "old"
	// CleanMatchingTag removes ids carrying every given tag (AND).
	CleanMatchingTag CleanMode = "matchingTag"
	// CleanNotMatchingTag removes ids carrying none of the given tags.
	CleanNotMatchingTag CleanMode = "notMatchingTag"
	// CleanMatchingAnyTag removes ids carrying at least one given tag (OR) and retires the tags.
	CleanMatchingAnyTag CleanMode = "matchingAnyTag"
)

// ParseCleanMode converts a mode string into a CleanMode.
func ParseCleanMode(s string) (CleanMode, error) {
	switch m := CleanMode(s); m {
	case CleanAll, CleanOld, CleanMatchingTag, CleanNotMatchingTag, CleanMatchingAnyTag:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Lifetime is the requested lifetime of a record. Positive values are explicit
// durations; LifetimeDefault and LifetimeInfinite are sentinels.
type Lifetime time.Duration

const (
	// LifetimeInfinite stores the record without a TTL.
	LifetimeInfinite Lifetime = 0
	// LifetimeDefault uses the engine-wide default lifetime.
	LifetimeDefault Lifetime = -1
)

// For returns an explicit lifetime.
func For(d time.Duration) Lifetime {
	if d <= 0 {
		return LifetimeInfinite
	}
	return Lifetime(d)
}

func (l Lifetime) Duration() time.Duration { return time.Duration(l) }

// Record is the shape of one stored entry.
type Record struct {
	Data     []byte
	Tags     []string
	MTime    time.Time
	Infinite bool
}

// Metadata describes a stored record without its payload.
// ExpireAt is nil for records without a TTL.
type Metadata struct {
	ExpireAt *time.Time `json:"expire_at,omitempty"`
	Tags     []string   `json:"tags"`
	MTime    time.Time  `json:"mtime"`
}

// Capabilities reports what the backend supports.
type Capabilities struct {
	AutomaticCleaning bool `json:"automatic_cleaning"`
	Tags              bool `json:"tags"`
	ExpiredRead       bool `json:"expired_read"`
	Priority          bool `json:"priority"`
	InfiniteLifetime  bool `json:"infinite_lifetime"`
	GetList           bool `json:"get_list"`
}

// GCStats summarizes one garbage collection sweep.
type GCStats struct {
	TagsScanned int `json:"tags_scanned"`
	TagsRemoved int `json:"tags_removed"`
	IdsExpired  int `json:"ids_expired"`
	IdsPruned   int `json:"ids_pruned"`
}
