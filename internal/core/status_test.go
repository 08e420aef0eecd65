package core

import (
	"errors"
	"testing"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   FeedValue
		want Statuses
	}{
		{"0", Statuses{Code: 0, Company: CompanyPending, Activation: ActivationPending, Address: AddressPending}},
		{"1", Statuses{Code: 1, Company: CompanyApproved, Activation: ActivationActivated, Address: AddressActivated}},
		{"2", Statuses{Code: 2, Company: CompanyBlocked, Activation: ActivationBlacklisted, Address: AddressRejected}},
	}

	for _, tt := range tests {
		got, err := MapStatus(tt.in)
		if err != nil {
			t.Errorf("MapStatus(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("MapStatus(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestMapStatus_Approved(t *testing.T) {
	s, _ := MapStatus("1")
	if !s.Approved() {
		t.Error("status 1 should be approved")
	}
	s, _ = MapStatus("2")
	if s.Approved() {
		t.Error("status 2 should not be approved")
	}
}

func TestMapStatus_OutOfRange(t *testing.T) {
	for _, in := range []FeedValue{"3", "-1", "", "approved"} {
		_, err := MapStatus(in)
		var re *RowError
		if !errors.As(err, &re) {
			t.Errorf("MapStatus(%q) error = %v, want *RowError", in, err)
			continue
		}
		if re.Kind != KindInvalidStatusCode {
			t.Errorf("MapStatus(%q) kind = %v, want InvalidStatusCode", in, re.Kind)
		}
	}
}
