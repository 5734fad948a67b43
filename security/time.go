package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the default grace period applied to
	// expiry checks. It prevents false expiration errors caused by time
	// synchronization drift between the hosts sharing a storage backend,
	// at the cost of honoring a credential up to this long past its
	// nominal expiry.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks whether a timestamp has passed, with the default
// clock-skew grace period. A zero timestamp never expires.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod checks whether a timestamp has passed, with a
// custom clock-skew grace period.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}
