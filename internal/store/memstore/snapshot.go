package memstore

import (
	"sort"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// Snapshot is a copy of every table, each sorted by id or key.
type Snapshot struct {
	Customers  []core.Customer
	Attributes []core.CustomerAttributes
	Whitespace []core.WhitespaceOutlet
	Addresses  []core.Address
	Companies  []core.Company
	Credits    []core.CreditLimit
	Payments   []core.PaymentSettings
	Mappings   []core.SellerMapping
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	for _, c := range s.customers {
		c.Mode = core.WriteInsert
		snap.Customers = append(snap.Customers, c)
	}
	for _, a := range s.attributes {
		snap.Attributes = append(snap.Attributes, a)
	}
	for _, w := range s.whitespace {
		snap.Whitespace = append(snap.Whitespace, w)
	}
	for _, a := range s.addresses {
		snap.Addresses = append(snap.Addresses, a)
	}
	for _, c := range s.companies {
		snap.Companies = append(snap.Companies, c)
	}
	for _, c := range s.credits {
		snap.Credits = append(snap.Credits, c)
	}
	for _, p := range s.payments {
		snap.Payments = append(snap.Payments, p)
	}
	for _, m := range s.mappings {
		snap.Mappings = append(snap.Mappings, m)
	}

	sort.Slice(snap.Customers, func(i, j int) bool { return snap.Customers[i].ID < snap.Customers[j].ID })
	sort.Slice(snap.Attributes, func(i, j int) bool { return snap.Attributes[i].CustomerID < snap.Attributes[j].CustomerID })
	sort.Slice(snap.Whitespace, func(i, j int) bool { return snap.Whitespace[i].ID < snap.Whitespace[j].ID })
	sort.Slice(snap.Addresses, func(i, j int) bool { return snap.Addresses[i].ID < snap.Addresses[j].ID })
	sort.Slice(snap.Companies, func(i, j int) bool { return snap.Companies[i].ID < snap.Companies[j].ID })
	sort.Slice(snap.Credits, func(i, j int) bool { return snap.Credits[i].CompanyID < snap.Credits[j].CompanyID })
	sort.Slice(snap.Payments, func(i, j int) bool { return snap.Payments[i].CompanyID < snap.Payments[j].CompanyID })
	sort.Slice(snap.Mappings, func(i, j int) bool { return snap.Mappings[i].ID < snap.Mappings[j].ID })
	return snap
}

// CustomerByCode returns the first customer with the code.
func (s *Store) CustomerByCode(code string) (core.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.Code == code {
			return c, true
		}
	}
	return core.Customer{}, false
}

// CompanyOf returns the company owned by the customer.
func (s *Store) CompanyOf(customerID int64) (core.Company, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.SuperUserID == customerID {
			return c, true
		}
	}
	return core.Company{}, false
}
