package domain

import (
	"time"
)

// SubscriptionDays is the length of one paid membership period. Order
// completion and account activation both use it.
const SubscriptionDays = 30

const day = 24 * time.Hour

// SubscriptionPeriod returns SubscriptionDays as a duration.
func SubscriptionPeriod() time.Duration {
	return SubscriptionDays * day
}

// Account is a registered user together with membership and password
// reset state.
type Account struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`

	Tier             Tier       `json:"tier"`
	IsActiveMember   bool       `json:"is_active_member"`
	ActivationStart  *time.Time `json:"activation_start,omitempty"`
	ActivationExpiry *time.Time `json:"activation_expiry,omitempty"`

	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	ProfilePicture       string        `json:"profile_picture,omitempty"`
	SelectedAvatar       string        `json:"selected_avatar,omitempty"`
	BirthDate            *time.Time    `json:"birth_date,omitempty"`
	DefaultPaymentMethod PaymentMethod `json:"default_payment_method,omitempty"`
	CardLastFour         string        `json:"card_last_four,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount returns a free, inactive account.
func NewAccount(id, username, email, firstName, lastName string, now time.Time) *Account {
	return &Account{
		ID:        id,
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Tier:      TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Activate starts a fresh membership window of durationDays at now. Any
// previous window is replaced, not extended.
func (a *Account) Activate(tier Tier, durationDays int, now time.Time) {
	start := now
	expiry := now.Add(time.Duration(durationDays) * day)
	a.Tier = tier
	a.ActivationStart = &start
	a.ActivationExpiry = &expiry
	a.IsActiveMember = true
	a.UpdatedAt = now
}

// IsActive derives membership activity from the expiry when one is set and
// falls back to the stored flag otherwise.
func (a *Account) IsActive(now time.Time) bool {
	if a.ActivationExpiry != nil {
		return now.Before(*a.ActivationExpiry)
	}
	return a.IsActiveMember
}

// RemainingDays counts the days left in the window, a started day counting
// as a whole one. Inactive accounts have none.
func (a *Account) RemainingDays(now time.Time) int {
	if a.ActivationExpiry == nil || !a.IsActive(now) {
		return 0
	}
	left := a.ActivationExpiry.Sub(now)
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return max(days, 0)
}

// TierDisplayName returns the label of the account's tier.
func (a *Account) TierDisplayName() string {
	return a.Tier.DisplayName()
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// MembershipStatus is a read model of an account's membership at one instant.
type MembershipStatus struct {
	Tier             Tier       `json:"tier"`
	TierName         string     `json:"tier_name"`
	Active           bool       `json:"active"`
	RemainingDays    int        `json:"remaining_days"`
	ActivationStart  *time.Time `json:"activation_start,omitempty"`
	ActivationExpiry *time.Time `json:"activation_expiry,omitempty"`
}

// Membership evaluates the account's membership at now.
func (a *Account) Membership(now time.Time) MembershipStatus {
	return MembershipStatus{
		Tier:             a.Tier,
		TierName:         a.TierDisplayName(),
		Active:           a.IsActive(now),
		RemainingDays:    a.RemainingDays(now),
		ActivationStart:  a.ActivationStart,
		ActivationExpiry: a.ActivationExpiry,
	}
}
