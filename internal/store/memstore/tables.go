package memstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// ============================================================================
// Vendors
// ============================================================================

type vendorStore struct{ *Store }

func (s vendorStore) FindByCodes(_ context.Context, codes []string) (map[string]core.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Vendor, len(codes))
	for _, c := range codes {
		if v, ok := s.vendors[c]; ok {
			out[c] = v
		}
	}
	return out, nil
}

// ============================================================================
// Customers
// ============================================================================

type customerStore struct{ *Store }

func (s customerStore) FindByKeys(_ context.Context, codes []string, vendorIDs []int64) (map[core.CustomerKey]core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wantCode := make(map[string]bool, len(codes))
	for _, c := range codes {
		wantCode[c] = true
	}
	wantVendor := make(map[int64]bool, len(vendorIDs))
	for _, v := range vendorIDs {
		wantVendor[v] = true
	}

	out := make(map[core.CustomerKey]core.Customer)
	for _, c := range s.customers {
		if wantCode[c.Code] && wantVendor[c.VendorID] {
			out[c.Key()] = c
		}
	}
	return out, nil
}

func (s customerStore) findByKey(key core.CustomerKey) (core.Customer, bool) {
	for _, c := range s.customers {
		if c.Key() == key {
			return c, true
		}
	}
	return core.Customer{}, false
}

// Upsert matches on (code, vendor id). Updates keep the stored email,
// mobile number, creation time and default addresses.
func (s customerStore) Upsert(_ context.Context, _ core.Scope, customers []core.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range customers {
		if c.Code == "" {
			return errors.New("customer code is required")
		}
		existing, ok := s.findByKey(c.Key())
		if !ok {
			c.ID = s.next("customers")
			c.CreatedAt = s.now()
			c.DefaultShippingID, c.DefaultBillingID = 0, 0
			s.customers[c.ID] = c
			continue
		}

		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		c.DefaultShippingID = existing.DefaultShippingID
		c.DefaultBillingID = existing.DefaultBillingID
		if c.Mode == core.WriteUpdate {
			c.Email = existing.Email
			c.MobileNumber = existing.MobileNumber
		}
		s.customers[c.ID] = c
	}
	return nil
}

func (s customerStore) SaveAttributes(_ context.Context, attrs []core.CustomerAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range attrs {
		if _, ok := s.customers[a.CustomerID]; !ok {
			return fmt.Errorf("customer %d: %w", a.CustomerID, ErrNotFound)
		}
		s.attributes[a.CustomerID] = a
	}
	return nil
}

// Delete removes a customer with everything that references it: its
// attributes, addresses and seller mappings, and the companies it owns
// together with their credit lines and payment settings.
func (s customerStore) Delete(_ context.Context, scope core.Scope, id int64) error {
	if err := scope.RequireElevated(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	delete(s.customers, id)
	delete(s.attributes, id)
	for aid, a := range s.addresses {
		if a.CustomerID == id {
			delete(s.addresses, aid)
		}
	}
	for key, m := range s.mappings {
		if m.RetailerID == id {
			delete(s.mappings, key)
		}
	}
	for cid, c := range s.companies {
		if c.SuperUserID == id {
			delete(s.companies, cid)
			delete(s.credits, cid)
			delete(s.payments, cid)
		}
	}
	return nil
}

// ============================================================================
// Whitespace outlets
// ============================================================================

type whitespaceStore struct{ *Store }

func (s whitespaceStore) FindByCodes(_ context.Context, codes []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(codes))
	for _, c := range codes {
		if w, ok := s.whitespace[c]; ok {
			out[c] = w.ID
		}
	}
	return out, nil
}

func (s whitespaceStore) Upsert(_ context.Context, outlets []core.WhitespaceOutlet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outlets {
		if existing, ok := s.whitespace[o.CustomerCode]; ok {
			o.ID = existing.ID
		} else {
			o.ID = s.next("whitespace")
		}
		s.whitespace[o.CustomerCode] = o
	}
	return nil
}

// ============================================================================
// Addresses
// ============================================================================

type addressStore struct{ *Store }

func (s addressStore) Create(_ context.Context, a core.Address) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[a.CustomerID]; !ok {
		return 0, fmt.Errorf("customer %d: %w", a.CustomerID, ErrNotFound)
	}
	a.ID = s.next("addresses")
	a.DefaultShipping, a.DefaultBilling = false, false
	s.addresses[a.ID] = a
	return a.ID, nil
}

func (s addressStore) Update(_ context.Context, a core.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.addresses[a.ID]
	if !ok {
		return fmt.Errorf("address %d: %w", a.ID, ErrNotFound)
	}
	a.DefaultShipping = existing.DefaultShipping
	a.DefaultBilling = existing.DefaultBilling
	s.addresses[a.ID] = a
	return nil
}

// SetDefault makes the address the only default shipping and billing
// address of the customer.
func (s addressStore) SetDefault(_ context.Context, customerID, addressID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
	}
	target, ok := s.addresses[addressID]
	if !ok || target.CustomerID != customerID {
		return fmt.Errorf("address %d of customer %d: %w", addressID, customerID, ErrNotFound)
	}
	for id, a := range s.addresses {
		if a.CustomerID == customerID {
			a.DefaultShipping = id == addressID
			a.DefaultBilling = id == addressID
			s.addresses[id] = a
		}
	}
	c.DefaultShippingID = addressID
	c.DefaultBillingID = addressID
	s.customers[customerID] = c
	return nil
}

// ============================================================================
// Companies
// ============================================================================

type companyStore struct{ *Store }

// FindIDByCustomer returns the id of the company owned by the customer.
// Without one it falls back to the oldest company carrying the customer
// code, and returns 0 when neither exists.
func (s companyStore) FindIDByCustomer(_ context.Context, customerID int64, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := s.companyOf(customerID); id != 0 || code == "" {
		return id, nil
	}
	var found int64
	for id, c := range s.companies {
		if c.CustomerCode == code && (found == 0 || id < found) {
			found = id
		}
	}
	return found, nil
}

func (s companyStore) companyOf(customerID int64) int64 {
	for id, c := range s.companies {
		if c.SuperUserID == customerID {
			return id
		}
	}
	return 0
}

func (s companyStore) Create(_ context.Context, _ core.Scope, c core.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.SuperUserID]; !ok {
		return fmt.Errorf("super user %d: %w", c.SuperUserID, ErrNotFound)
	}
	if id := s.companyOf(c.SuperUserID); id != 0 {
		return fmt.Errorf("customer %d already owns company %d", c.SuperUserID, id)
	}
	if c.Status == "" {
		c.Status = core.CompanyPending
	}
	c.ID = s.next("companies")
	s.companies[c.ID] = c
	return nil
}

// Update replaces the company. An empty status or nil activation time
// keeps the stored value.
func (s companyStore) Update(_ context.Context, c core.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.companies[c.ID]
	if !ok {
		return fmt.Errorf("company %d: %w", c.ID, ErrNotFound)
	}
	if c.Status == "" {
		c.Status = existing.Status
	}
	if c.ActivatedAt == nil {
		c.ActivatedAt = existing.ActivatedAt
	}
	s.companies[c.ID] = c
	return nil
}

// SetCreditLimit sets the currency of the company's credit line. The
// amount only seeds a line that does not exist yet.
func (s companyStore) SetCreditLimit(_ context.Context, line core.CreditLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[line.CompanyID]; !ok {
		return fmt.Errorf("company %d: %w", line.CompanyID, ErrNotFound)
	}
	credit, ok := s.credits[line.CompanyID]
	if !ok {
		credit = line
	}
	credit.Currency = line.Currency
	s.credits[line.CompanyID] = credit
	return nil
}

// ============================================================================
// Payments and seller mappings
// ============================================================================

type paymentStore struct{ *Store }

func (s paymentStore) Upsert(_ context.Context, settings []core.PaymentSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range settings {
		if _, ok := s.companies[p.CompanyID]; !ok {
			return fmt.Errorf("company %d: %w", p.CompanyID, ErrNotFound)
		}
		s.payments[p.CompanyID] = p
	}
	return nil
}

type mappingStore struct{ *Store }

func (s mappingStore) FindIDs(_ context.Context, retailerIDs []int64, sellerCodes []string) (map[core.MappingKey]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wantRetailer := make(map[int64]bool, len(retailerIDs))
	for _, id := range retailerIDs {
		wantRetailer[id] = true
	}
	wantSeller := make(map[string]bool, len(sellerCodes))
	for _, c := range sellerCodes {
		wantSeller[c] = true
	}
	out := make(map[core.MappingKey]int64)
	for k, m := range s.mappings {
		if wantRetailer[k.RetailerID] && wantSeller[k.SellerCode] {
			out[k] = m.ID
		}
	}
	return out, nil
}

// Upsert matches on (retailer id, seller code), keeping the stored id.
func (s mappingStore) Upsert(_ context.Context, mappings []core.SellerMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mappings {
		if _, ok := s.customers[m.RetailerID]; !ok {
			return fmt.Errorf("retailer %d: %w", m.RetailerID, ErrNotFound)
		}
		if existing, ok := s.mappings[m.Key()]; ok {
			m.ID = existing.ID
		} else {
			m.ID = s.next("seller_mappings")
		}
		s.mappings[m.Key()] = m
	}
	return nil
}
