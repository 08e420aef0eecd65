package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRowError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *RowError
		want string
	}{
		{
			name: "missing customer code",
			err:  missingFieldErr("customer_code"),
			want: "Column customer_code () is empty.",
		},
		{
			name: "vendor not found",
			err:  rowErr(KindVendorNotFound, errVendorNotFound),
			want: "vendor data is not correct.",
		},
		{
			name: "address",
			err:  rowErr(KindAddressSaveFailed, errors.New("postcode is required")),
			want: "Address Save => postcode is required",
		},
		{
			name: "generic company failure",
			err:  rowErr(KindCompanySaveFailed, errors.New("connection reset")),
			want: "Company Save => connection reset",
		},
		{
			name: "localized company failure",
			err:  rowErr(KindCompanySaveFailed, fmt.Errorf("create: %w", &LocalizedError{Message: "Company email already used"})),
			want: "Localized exception on company save => create: Company email already used",
		},
		{
			name: "missing company id",
			err:  rowErr(KindMissingCompanyID, errMissingCompanyID),
			want: "Company Id is mandatory for rest process",
		},
		{
			name: "payment",
			err:  rowErr(KindPaymentSaveFailed, errors.New("x")),
			want: "Company Payment Details => x",
		},
		{
			name: "seller mapping",
			err:  rowErr(KindSellerMappingSaveFailed, errors.New("x")),
			want: "Vendor Association Save => x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRowError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("stage: %w", rowErr(KindPaymentSaveFailed, cause))

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	var re *RowError
	if !errors.As(err, &re) || re.Kind != KindPaymentSaveFailed {
		t.Errorf("errors.As = %v, want PaymentSaveFailed", re)
	}
}

func TestErrorKind_Codes(t *testing.T) {
	seen := make(map[string]ErrorKind)
	for k := KindMissingRequiredField; k <= KindSellerMappingSaveFailed; k++ {
		code := k.Code()
		if code == "" {
			t.Errorf("%v has no code", k)
		}
		if prev, ok := seen[code]; ok {
			t.Errorf("%v and %v share code %s", prev, k, code)
		}
		seen[code] = k
	}
	if got := KindMissingCompanyID.String(); got != "MissingCompanyId" {
		t.Errorf("String() = %q", got)
	}
	if got := ErrorKind(99).String(); got != "ErrorKind(99)" {
		t.Errorf("unknown kind String() = %q", got)
	}
}

func TestCollector_ConcurrentAdd(t *testing.T) {
	var c Collector
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			c.Add(row, fmt.Sprintf("C%d", row), rowErr(KindAddressSaveFailed, errors.New("x")))
		}(i)
	}
	wg.Wait()

	entries := c.Entries()
	if len(entries) != 50 {
		t.Fatalf("got %d entries, want 50", len(entries))
	}
	for i, e := range entries {
		if e.Row != i {
			t.Fatalf("entries not ordered by row: index %d has row %d", i, e.Row)
		}
		if e.Code != "ROW006" {
			t.Errorf("entry %d code = %q, want ROW006", i, e.Code)
		}
	}
}

func TestCollector_UntaggedError(t *testing.T) {
	var c Collector
	c.Add(0, "C1", errors.New("dial tcp: connection refused"))

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Kind != KindCustomerSaveFailed {
		t.Errorf("Kind = %v, want CustomerSaveFailed", entries[0].Kind)
	}
	if entries[0].Hint == "" {
		t.Error("expected a store hint for connection refused")
	}
}

func TestStoreHint(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("ERROR: duplicate key value violates unique constraint"), "DB001: a record with this key already exists"},
		{errors.New("context deadline exceeded"), "DB006: operation timed out"},
		{errors.New("deadlock detected"), "DB007: database was busy, retry the row"},
		{errors.New("something else"), ""},
	}

	for _, tt := range tests {
		if got := StoreHint(tt.err); got != tt.want {
			t.Errorf("StoreHint(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
