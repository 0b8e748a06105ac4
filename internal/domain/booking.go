package domain

import "github.com/shopspring/decimal"

// BookingSummary is the subset of a booking the payment flow needs.
type BookingSummary struct {
	ID         int64
	SalonID    int64
	TotalPrice decimal.NullDecimal
}

// User is the caller's profile as reported by the user directory.
type User struct {
	ID       int64
	Email    string
	FullName string
}

// DisplayName falls back to the email when no full name is on file.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
