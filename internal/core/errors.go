package core

// # Row Error Codes
//
// Every row failure carries a kind with a stable code that support staff
// can look up. The message prefix is what ends up in the batch result.
//
//	ROW001 - MissingRequiredField: customer code is empty; nothing written
//	ROW002 - VendorNotFound: seller code has no vendor; no customer write
//	ROW003 - InvalidStatusCode: status is not 0, 1 or 2
//	ROW004 - CustomerSaveFailed: customer upsert or attribute save failed
//	ROW005 - WhitespaceSaveFailed: whitespace outlet upsert failed
//	ROW006 - AddressSaveFailed: default address could not be saved
//	ROW007 - CompanySaveFailed: company create or update failed
//	ROW008 - MissingCompanyId: no company id after the company stage;
//	         the row's customer is deleted
//	ROW009 - PaymentSaveFailed: payment settings upsert failed
//	ROW010 - SellerMappingSaveFailed: retailer/seller association failed
//
// # Store Error Hints (DB001-DB007)
//
// When the underlying store error matches a known pattern the entry also
// carries a short hint. See storeHints below.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrorKind tags the stage at which a row failed.
type ErrorKind int

const (
	KindMissingRequiredField ErrorKind = iota + 1
	KindVendorNotFound
	KindInvalidStatusCode
	KindCustomerSaveFailed
	KindWhitespaceSaveFailed
	KindAddressSaveFailed
	KindCompanySaveFailed
	KindMissingCompanyID
	KindPaymentSaveFailed
	KindSellerMappingSaveFailed
)

type kindInfo struct {
	name   string
	code   string
	prefix string
}

var kinds = map[ErrorKind]kindInfo{
	KindMissingRequiredField:    {"MissingRequiredField", "ROW001", ""},
	KindVendorNotFound:          {"VendorNotFound", "ROW002", ""},
	KindInvalidStatusCode:       {"InvalidStatusCode", "ROW003", "Status => "},
	KindCustomerSaveFailed:      {"CustomerSaveFailed", "ROW004", "Customer Save => "},
	KindWhitespaceSaveFailed:    {"WhitespaceSaveFailed", "ROW005", "Whitespace Outlet Save => "},
	KindAddressSaveFailed:       {"AddressSaveFailed", "ROW006", "Address Save => "},
	KindCompanySaveFailed:       {"CompanySaveFailed", "ROW007", "Company Save => "},
	KindMissingCompanyID:        {"MissingCompanyId", "ROW008", ""},
	KindPaymentSaveFailed:       {"PaymentSaveFailed", "ROW009", "Company Payment Details => "},
	KindSellerMappingSaveFailed: {"SellerMappingSaveFailed", "ROW010", "Vendor Association Save => "},
}

func (k ErrorKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Code returns the support reference code for the kind.
func (k ErrorKind) Code() string {
	return kinds[k].code
}

// MarshalText renders the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrLocalized marks a store failure that carries a message meant for the
// feed owner (a business rule rejection rather than an infrastructure fault).
var ErrLocalized = errors.New("localized")

// LocalizedError wraps a business rule rejection raised by a store.
type LocalizedError struct {
	Message string
}

func (e *LocalizedError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrLocalized) match.
func (e *LocalizedError) Is(target error) bool { return target == ErrLocalized }

// RowError is the tagged result of a failed pipeline stage.
type RowError struct {
	Kind ErrorKind
	Err  error
}

func (e *RowError) Error() string {
	return e.Message()
}

func (e *RowError) Unwrap() error { return e.Err }

// Message renders the error the way it is reported for the row.
func (e *RowError) Message() string {
	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
	}
	if e.Kind == KindCompanySaveFailed && errors.Is(e.Err, ErrLocalized) {
		return "Localized exception on company save => " + detail
	}
	return kinds[e.Kind].prefix + detail
}

func rowErr(kind ErrorKind, err error) *RowError {
	return &RowError{Kind: kind, Err: err}
}

var (
	errVendorNotFound   = errors.New("vendor data is not correct.")
	errMissingCompanyID = errors.New("Company Id is mandatory for rest process")
)

func missingFieldErr(field string) *RowError {
	return rowErr(KindMissingRequiredField, fmt.Errorf("Column %s () is empty.", field))
}

// ErrorEntry is one reported row failure.
type ErrorEntry struct {
	Row     int       `json:"-"`
	RowKey  string    `json:"row_key"`
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

// Collector accumulates row failures. It never fails and is safe for
// concurrent use.
type Collector struct {
	mu      sync.Mutex
	entries []ErrorEntry
}

// Add records a failure for the row at index row.
func (c *Collector) Add(row int, key string, err error) {
	var re *RowError
	if !errors.As(err, &re) {
		re = rowErr(KindCustomerSaveFailed, err)
	}
	entry := ErrorEntry{
		Row:     row,
		RowKey:  key,
		Kind:    re.Kind,
		Code:    re.Kind.Code(),
		Message: re.Message(),
		Hint:    StoreHint(re.Err),
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

// Len returns the number of collected entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns the collected failures ordered by row, then by the
// order they were added.
func (c *Collector) Entries() []ErrorEntry {
	c.mu.Lock()
	out := make([]ErrorEntry, len(c.entries))
	copy(out, c.entries)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

type storeHint struct {
	pattern string
	hint    string
}

// storeHints maps raw store errors to a short operator hint.
var storeHints = []storeHint{
	{"duplicate key", "DB001: a record with this key already exists"},
	{"unique constraint", "DB002: value must be unique"},
	{"violates unique", "DB002: value must be unique"},
	{"foreign key", "DB003: referenced record does not exist"},
	{"connection refused", "DB004: unable to connect to database"},
	{"connection reset", "DB005: database connection was interrupted"},
	{"timeout", "DB006: operation timed out"},
	{"deadline exceeded", "DB006: operation timed out"},
	{"deadlock", "DB007: database was busy, retry the row"},
}

// StoreHint returns the hint for a store error, or "" when none applies.
func StoreHint(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	for _, h := range storeHints {
		if strings.Contains(errStr, h.pattern) {
			return h.hint
		}
	}
	return ""
}
