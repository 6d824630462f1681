// Package service implements the membership business logic: accounts,
// the plan cart, payment orders and password reset.
package service

import (
	"errors"
	"time"

	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// recentOrdersLimit is how many orders the profile page shows.
const recentOrdersLimit = 5

// Clock returns the current time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
