// Package memstore is an in-memory implementation of every store the
// reconciliation engine writes through. It backs tests and dry runs.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// ErrNotFound is returned when an update targets a missing record.
var ErrNotFound = errors.New("record not found")

type regionKey struct {
	code    string
	country string
}

// Store holds all tables behind one mutex. Ids are assigned per table
// starting at 1.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq map[string]int64

	vendors    map[string]core.Vendor
	customers  map[int64]core.Customer
	attributes map[int64]core.CustomerAttributes
	whitespace map[string]core.WhitespaceOutlet
	addresses  map[int64]core.Address
	companies  map[int64]core.Company
	credits    map[int64]core.CreditLimit
	payments   map[int64]core.PaymentSettings
	mappings   map[core.MappingKey]core.SellerMapping
	regions    map[regionKey]int64
	sites      map[int64]core.StoreInfo
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		seq:        make(map[string]int64),
		vendors:    make(map[string]core.Vendor),
		customers:  make(map[int64]core.Customer),
		attributes: make(map[int64]core.CustomerAttributes),
		whitespace: make(map[string]core.WhitespaceOutlet),
		addresses:  make(map[int64]core.Address),
		companies:  make(map[int64]core.Company),
		credits:    make(map[int64]core.CreditLimit),
		payments:   make(map[int64]core.PaymentSettings),
		mappings:   make(map[core.MappingKey]core.SellerMapping),
		regions:    make(map[regionKey]int64),
		sites:      make(map[int64]core.StoreInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stores returns the store wired into every engine collaborator slot.
func (s *Store) Stores() core.Stores {
	return core.Stores{
		Vendors:    vendorStore{s},
		Customers:  customerStore{s},
		Whitespace: whitespaceStore{s},
		Addresses:  addressStore{s},
		Companies:  companyStore{s},
		Payments:   paymentStore{s},
		Mappings:   mappingStore{s},
		Regions:    s,
		Sites:      s,
	}
}

func (s *Store) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// ============================================================================
// Seeding
// ============================================================================

// AddVendor registers a vendor.
func (s *Store) AddVendor(v core.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[v.SellerCode] = v
}

// AddRegion registers a region id for a (region code, country) pair.
func (s *Store) AddRegion(code, country string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[regionKey{code, country}] = id
}

// AddSite registers a storefront.
func (s *Store) AddSite(info core.StoreInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[info.StoreID] = info
}

// RegionID returns the region id, or 0 for an unknown region.
func (s *Store) RegionID(_ context.Context, code, country string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regions[regionKey{code, country}], nil
}

// Store resolves a storefront.
func (s *Store) Store(_ context.Context, storeID int64) (core.StoreInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.sites[storeID]
	if !ok {
		return core.StoreInfo{}, fmt.Errorf("store %d: %w", storeID, core.ErrStoreNotFound)
	}
	return info, nil
}
