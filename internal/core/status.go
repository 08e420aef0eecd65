package core

import "fmt"

// CompanyStatus is the lifecycle state shared by customers, companies and
// seller mappings.
type CompanyStatus string

const (
	CompanyPending  CompanyStatus = "pending"
	CompanyApproved CompanyStatus = "approved"
	CompanyBlocked  CompanyStatus = "blocked"
)

// ActivationStatus is the customer activation state.
type ActivationStatus string

const (
	ActivationPending     ActivationStatus = "pending_activation"
	ActivationActivated   ActivationStatus = "activated"
	ActivationBlacklisted ActivationStatus = "blacklisted"
)

// AddressStatus is the verification state of an outlet address.
type AddressStatus string

const (
	AddressPending   AddressStatus = "pending"
	AddressActivated AddressStatus = "activated"
	AddressRejected  AddressStatus = "rejected"
)

// StatusApprovedCode is the feed status code meaning "approved".
const StatusApprovedCode = 1

var (
	companyStatuses    = [...]CompanyStatus{CompanyPending, CompanyApproved, CompanyBlocked}
	activationStatuses = [...]ActivationStatus{ActivationPending, ActivationActivated, ActivationBlacklisted}
	addressStatuses    = [...]AddressStatus{AddressPending, AddressActivated, AddressRejected}
)

// Statuses holds the three lifecycle values derived from one feed code.
type Statuses struct {
	Code       int
	Company    CompanyStatus
	Activation ActivationStatus
	Address    AddressStatus
}

// Approved reports whether the feed code was the approved code.
func (s Statuses) Approved() bool {
	return s.Code == StatusApprovedCode
}

// MapStatus translates a feed status code (0, 1 or 2) into its lifecycle
// values. Anything else is an InvalidStatusCode row error.
func MapStatus(v FeedValue) (Statuses, error) {
	code, ok := v.Int()
	if !ok || code < 0 || code >= len(companyStatuses) {
		return Statuses{}, &RowError{
			Kind: KindInvalidStatusCode,
			Err:  fmt.Errorf("status %q is not one of 0, 1, 2", v.String()),
		}
	}
	return Statuses{
		Code:       code,
		Company:    companyStatuses[code],
		Activation: activationStatuses[code],
		Address:    addressStatuses[code],
	}, nil
}
