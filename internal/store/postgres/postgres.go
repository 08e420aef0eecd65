// Package postgres implements the engine's stores on PostgreSQL via pgx.
//
// Multi-row writes are sent as one pgx.Batch inside a transaction, so a
// chunk either lands completely or not at all. Callers that need row-level
// isolation retry a failed chunk one payload at a time.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/outletsync/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a write targets a missing row.
var ErrNotFound = errors.New("record not found")

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	Begin(context.Context) (pgx.Tx, error)
}

// Store implements every engine store on one connection source.
type Store struct {
	db DBTX
}

// New wraps db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Stores returns the engine's store bundle.
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

// execBatch queues statements with queue and sends them in one transaction.
func (s *Store) execBatch(ctx context.Context, queue func(b *pgx.Batch)) error {
	b := &pgx.Batch{}
	queue(b)
	if b.Len() == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, b).Close()
	})
}

// expectRows fails a queued statement that touched no row.
func expectRows(what string, id int64) func(pgconn.CommandTag) error {
	return func(ct pgconn.CommandTag) error {
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
		}
		return nil
	}
}

// ============================================================================
// Reference data
// ============================================================================

const regionIDSQL = `SELECT region_id FROM regions WHERE code = $1 AND country_id = $2`

// RegionID returns the region id, or 0 for an unknown region.
func (s *Store) RegionID(ctx context.Context, code, country string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, regionIDSQL, code, country).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("region %s/%s: %w", code, country, err)
	}
	return id, nil
}

const storeSQL = `SELECT store_id, website_id, name, currency FROM stores WHERE store_id = $1`

// Store resolves a storefront.
func (s *Store) Store(ctx context.Context, storeID int64) (core.StoreInfo, error) {
	var info core.StoreInfo
	err := s.db.QueryRow(ctx, storeSQL, storeID).
		Scan(&info.StoreID, &info.WebsiteID, &info.Name, &info.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.StoreInfo{}, fmt.Errorf("store %d: %w", storeID, core.ErrStoreNotFound)
	}
	if err != nil {
		return core.StoreInfo{}, fmt.Errorf("store %d: %w", storeID, err)
	}
	return info, nil
}

const (
	upsertVendorSQL = `
INSERT INTO vendors (seller_code, seller_id, seller_group_id, erp_code)
VALUES ($1, $2, $3, $4)
ON CONFLICT (seller_code) DO UPDATE SET
    seller_id = EXCLUDED.seller_id,
    seller_group_id = EXCLUDED.seller_group_id,
    erp_code = EXCLUDED.erp_code`

	upsertRegionSQL = `
INSERT INTO regions (region_id, code, country_id) VALUES ($1, $2, $3)
ON CONFLICT (code, country_id) DO NOTHING`

	upsertStoreSQL = `
INSERT INTO stores (store_id, website_id, name, currency) VALUES ($1, $2, $3, $4)
ON CONFLICT (store_id) DO UPDATE SET
    website_id = EXCLUDED.website_id,
    name = EXCLUDED.name,
    currency = EXCLUDED.currency`
)

// Seed upserts reference data: sellers, regions and storefronts.
func (s *Store) Seed(ctx context.Context, vendors []core.Vendor, regions []Region, sites []core.StoreInfo) error {
	return s.execBatch(ctx, func(b *pgx.Batch) {
		for _, v := range vendors {
			b.Queue(upsertVendorSQL, v.SellerCode, v.SellerID, v.SellerGroupID, v.ERPCode)
		}
		for _, r := range regions {
			b.Queue(upsertRegionSQL, r.ID, r.Code, r.CountryID)
		}
		for _, st := range sites {
			b.Queue(upsertStoreSQL, st.StoreID, st.WebsiteID, st.Name, st.Currency)
		}
	})
}

// Region is a region row used for seeding.
type Region struct {
	ID        int64
	Code      string
	CountryID string
}

// ============================================================================
// Vendors
// ============================================================================

type vendorStore struct{ *Store }

const vendorsByCodeSQL = `
SELECT seller_code, seller_id, seller_group_id, erp_code
FROM vendors WHERE seller_code = ANY($1)`

func (s vendorStore) FindByCodes(ctx context.Context, codes []string) (map[string]core.Vendor, error) {
	out := make(map[string]core.Vendor, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, vendorsByCodeSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v core.Vendor
		if err := rows.Scan(&v.SellerCode, &v.SellerID, &v.SellerGroupID, &v.ERPCode); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		out[v.SellerCode] = v
	}
	return out, rows.Err()
}
