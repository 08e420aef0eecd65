package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FeedValue is a single cell of an outlet feed.
//
// Feeds arrive as JSON where the same column may be a string, a number,
// a boolean or null depending on the producer, so every value is kept as
// its textual form and interpreted by the stage that needs it.
type FeedValue string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (v *FeedValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*v = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = FeedValue(s)
	case bytes.Equal(b, []byte("true")):
		*v = "1"
	case bytes.Equal(b, []byte("false")):
		*v = "0"
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*v = FeedValue(n.String())
	}
	return nil
}

// String returns the trimmed text of the value.
func (v FeedValue) String() string {
	return strings.TrimSpace(string(v))
}

// Truthy reports whether the value counts as set: anything except empty,
// "0", "false" and "null".
func (v FeedValue) Truthy() bool {
	switch strings.ToLower(v.String()) {
	case "", "0", "false", "null", "0.0":
		return false
	}
	return true
}

// IsOne reports whether the value is the flag value 1.
func (v FeedValue) IsOne() bool {
	n, ok := v.Int()
	return ok && n == 1
}

// Int parses the value as an integer. Decimal forms like "1.0" are accepted.
func (v FeedValue) Int() (int, bool) {
	s := v.String()
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// CategorySlots is the number of category code columns carried by a record.
const CategorySlots = 7

// OutletRecord is one row of the outlet master-data feed.
type OutletRecord struct {
	CustomerCode FeedValue `json:"customer_code" validate:"required"`
	SellerCode   FeedValue `json:"seller_code"`
	CompanyName  FeedValue `json:"company_name"`
	FirstName    FeedValue `json:"firstName"`
	LastName     FeedValue `json:"lastName"`
	Email        FeedValue `json:"email"`
	CompanyEmail FeedValue `json:"company_email"`
	Telephone    FeedValue `json:"telephone"`
	DOB          FeedValue `json:"dob"`

	Street         FeedValue `json:"street"`
	City           FeedValue `json:"city"`
	Postcode       FeedValue `json:"postcode"`
	CountryID      FeedValue `json:"country_id"`
	Region         FeedValue `json:"region"`
	District       FeedValue `json:"district"`
	GeoCoordinates FeedValue `json:"geo_coordinates"`

	Status      FeedValue `json:"status"`
	B2BCustomer FeedValue `json:"b2b_customer"`
	Whitespace  FeedValue `json:"whitespace_outlet_status"`

	ApplicablePaymentMethod FeedValue `json:"applicable_payment_method"`
	AvailablePaymentMethods FeedValue `json:"available_payment_methods"`

	VatTaxID                FeedValue `json:"vat_tax_id"`
	RegistrationOutletID    FeedValue `json:"registration_outlet_id"`
	RegistrationSubOutletID FeedValue `json:"registration_sub_outlet_id"`
	BeatID                  FeedValue `json:"ul_beat_id"`
	DeliveryPriority        FeedValue `json:"delivery_priority"`
	TenantCode              FeedValue `json:"tenant_code"`

	CategoryCode1 FeedValue `json:"category_code_1"`
	CategoryCode2 FeedValue `json:"category_code_2"`
	CategoryCode3 FeedValue `json:"category_code_3"`
	CategoryCode4 FeedValue `json:"category_code_4"`
	CategoryCode5 FeedValue `json:"category_code_5"`
	CategoryCode6 FeedValue `json:"category_code_6"`
	CategoryCode7 FeedValue `json:"category_code_7"`
}

// CategoryCodes returns the seven category code columns in slot order.
func (r *OutletRecord) CategoryCodes() [CategorySlots]FeedValue {
	return [CategorySlots]FeedValue{
		r.CategoryCode1, r.CategoryCode2, r.CategoryCode3, r.CategoryCode4,
		r.CategoryCode5, r.CategoryCode6, r.CategoryCode7,
	}
}

// IsB2B reports whether the row is flagged as a b2b outlet.
func (r *OutletRecord) IsB2B() bool {
	return r.B2BCustomer.IsOne()
}

// IsWhitespace reports whether the row is a whitespace outlet.
func (r *OutletRecord) IsWhitespace() bool {
	return r.Whitespace.IsOne()
}

// RowKey identifies a row in the error list: the customer code, or the
// company name when the code itself is missing.
func (r *OutletRecord) RowKey() string {
	if code := r.CustomerCode.String(); code != "" {
		return code
	}
	return r.CompanyName.String()
}
