package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is the business condition of a demo user at the limit
	ErrQuotaExceeded = errors.New("quota: demo report limit reached")

	// ErrAccountInactive is returned for deactivated accounts
	ErrAccountInactive = errors.New("quota: account is not active")
)

// QuotaExceededError carries the counter state that blocked the increment
type QuotaExceededError struct {
	UserID  int64
	Current int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for user %d: %d of %d reports used", e.UserID, e.Current, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// IsQuotaExceeded checks if an error is a quota exceeded error
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
