package core

import "github.com/shopspring/decimal"

// Settings is the configuration surface the engine reads.
type Settings interface {
	// InviteCode is the invite code given to non-b2b customers of a store.
	InviteCode(storeID int64) string
	DefaultZone() string
	DefaultCustomerGroupID() int64
	// DefaultCountry is used when a row has no country.
	DefaultCountry(websiteID int64) string
	// StripPattern removes unwanted characters from names.
	StripPattern() string
	// CategoryCode maps a raw category code for slot 1..7.
	CategoryCode(slot int, code string) (string, bool)
	RegistrationOutletID(raw string) string
	RegistrationSubOutletID(outletID, raw string) string
	BeatID(raw string) string
	// InitialCreditLimit seeds the amount of a newly opened credit line.
	InitialCreditLimit() decimal.Decimal
}
