// Package dedup decides whether a new detection candidate is the same
// real-world transaction as one already seen on either stream.
package dedup

import (
	"time"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// Config holds the tunable matching parameters. The defaults are empirical;
// both windows are exposed through configuration rather than fixed here.
type Config struct {
	// Tolerance is the maximum timestamp distance for the amount/type
	// fallback match. The same payment typically produces its notification
	// and bank SMS within seconds of each other.
	Tolerance time.Duration
	// Lookback bounds how far into processed history the check reaches.
	Lookback time.Duration
}

// DefaultConfig returns the default matching parameters.
func DefaultConfig() Config {
	return Config{
		Tolerance: 3 * time.Minute,
		Lookback:  2 * time.Hour,
	}
}

// Deduplicator evaluates candidates against recent history. It is stateless
// and safe for concurrent use; callers supply the history slice.
type Deduplicator struct {
	config Config
}

// New creates a deduplicator with the given configuration.
func New(config Config) *Deduplicator {
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultConfig().Tolerance
	}
	if config.Lookback <= 0 {
		config.Lookback = DefaultConfig().Lookback
	}
	return &Deduplicator{config: config}
}

// Lookback returns the history window callers should load before checking.
func (d *Deduplicator) Lookback() time.Duration {
	return d.config.Lookback
}

// IsDuplicate reports whether the candidate matches any existing detection.
// A shared bank reference is conclusive regardless of source or timestamp;
// otherwise same amount, same direction and a timestamp within the tolerance
// window count as the same payment unless the account fragments conflict.
func (d *Deduplicator) IsDuplicate(candidate *model.DetectedTransaction, existing []model.DetectedTransaction) bool {
	for i := range existing {
		if d.matches(candidate, &existing[i]) {
			return true
		}
	}
	return false
}

func (d *Deduplicator) matches(candidate, other *model.DetectedTransaction) bool {
	if candidate.ID == other.ID {
		return true
	}

	if candidate.ReferenceID != "" && candidate.ReferenceID == other.ReferenceID {
		return true
	}

	if candidate.Type != other.Type {
		return false
	}
	if !candidate.Amount.Equal(other.Amount) {
		return false
	}

	delta := candidate.Timestamp.Sub(other.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > d.config.Tolerance {
		return false
	}

	// Conflicting account fragments mean two different accounts moved the
	// same amount at the same time; do not collapse them.
	if candidate.AccountNumber != "" && other.AccountNumber != "" &&
		candidate.AccountNumber != other.AccountNumber {
		return false
	}

	return true
}
