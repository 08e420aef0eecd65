package core

import (
	"encoding/json"
	"testing"
)

func TestFeedValue_UnmarshalJSON(t *testing.T) {
	data := `{
		"customer_code": 10023,
		"seller_code": "S1",
		"b2b_customer": true,
		"whitespace_outlet_status": false,
		"status": null,
		"telephone": "0",
		"delivery_priority": 1.5
	}`

	var rec OutletRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	checks := map[string]struct{ got, want FeedValue }{
		"customer_code":            {rec.CustomerCode, "10023"},
		"seller_code":              {rec.SellerCode, "S1"},
		"b2b_customer":             {rec.B2BCustomer, "1"},
		"whitespace_outlet_status": {rec.Whitespace, "0"},
		"status":                   {rec.Status, ""},
		"telephone":                {rec.Telephone, "0"},
		"delivery_priority":        {rec.DeliveryPriority, "1.5"},
	}
	for field, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", field, c.got, c.want)
		}
	}
	if !rec.IsB2B() {
		t.Error("IsB2B() = false, want true")
	}
	if rec.IsWhitespace() {
		t.Error("IsWhitespace() = true, want false")
	}
}

func TestFeedValue_UnmarshalJSON_RejectsObjects(t *testing.T) {
	var v FeedValue
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Error("expected error for object value")
	}
}

func TestFeedValue_Truthy(t *testing.T) {
	tests := []struct {
		in   FeedValue
		want bool
	}{
		{"", false},
		{"0", false},
		{" 0 ", false},
		{"false", false},
		{"null", false},
		{"1", true},
		{"cod,transfer", true},
		{"2", true},
	}

	for _, tt := range tests {
		if got := tt.in.Truthy(); got != tt.want {
			t.Errorf("FeedValue(%q).Truthy() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFeedValue_Int(t *testing.T) {
	tests := []struct {
		in     FeedValue
		want   int
		wantOK bool
	}{
		{"1", 1, true},
		{" 2 ", 2, true},
		{"1.0", 1, true},
		{"1.5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		got, ok := tt.in.Int()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FeedValue(%q).Int() = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestOutletRecord_RowKey(t *testing.T) {
	rec := OutletRecord{CustomerCode: "C1", CompanyName: "Toko Maju"}
	if got := rec.RowKey(); got != "C1" {
		t.Errorf("RowKey() = %q, want C1", got)
	}

	rec.CustomerCode = "  "
	if got := rec.RowKey(); got != "Toko Maju" {
		t.Errorf("RowKey() without code = %q, want company name", got)
	}
}
