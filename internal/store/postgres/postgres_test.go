package postgres

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// maxPlaceholder returns the highest $n in sql.
func maxPlaceholder(sql string) int {
	max := 0
	for _, m := range placeholder.FindAllStringSubmatch(sql, -1) {
		n, _ := strconv.Atoi(m[1])
		if n > max {
			max = n
		}
	}
	return max
}

func TestStatementArity(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want int
	}{
		{"insert company", insertCompanySQL, len(companyArgs(testCompany()))},
		{"update company", updateCompanySQL, len(companyArgs(testCompany())) + 1},
		{"upsert customer", upsertCustomerSQL, 16},
		{"upsert mapping", upsertMappingSQL, 14},
		{"insert address", insertAddressSQL, 12},
		{"update address", updateAddressSQL, 12},
		{"upsert whitespace", upsertWhitespaceSQL, 6},
		{"credit limit", setCreditLimitSQL, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maxPlaceholder(tt.sql); got != tt.want {
				t.Errorf("placeholders = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSchemaDeclaresEveryTable(t *testing.T) {
	tables := []string{
		"stores", "vendors", "regions", "customers", "customer_attributes",
		"whitespace_outlets", "customer_addresses", "companies", "company_credit",
		"company_payments", "seller_mappings",
	}
	for _, table := range tables {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema is missing table %s", table)
		}
	}
}

func TestExpectRows(t *testing.T) {
	check := expectRows("address", 9)

	if err := check(pgconn.NewCommandTag("UPDATE 1")); err != nil {
		t.Errorf("UPDATE 1: unexpected error %v", err)
	}
	err := check(pgconn.NewCommandTag("UPDATE 0"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UPDATE 0: error = %v, want ErrNotFound", err)
	}
	if err != nil && !strings.Contains(err.Error(), "address 9") {
		t.Errorf("error = %q, want it to name the row", err)
	}
}
