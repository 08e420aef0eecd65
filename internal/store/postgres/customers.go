package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// ============================================================================
// Customers
// ============================================================================

type customerStore struct{ *Store }

const customersByKeySQL = `
SELECT id, website_id, store_id, first_name, last_name, email,
       COALESCE(to_char(dob, 'YYYY-MM-DD'), ''), group_id, created_in, mobile_number,
       code, invite_code, sync_status, vendor_id, vendor_group_id, zone_mapping,
       created_at, COALESCE(default_shipping_id, 0), COALESCE(default_billing_id, 0)
FROM customers
WHERE code = ANY($1) AND vendor_id = ANY($2)`

func (s customerStore) FindByKeys(ctx context.Context, codes []string, vendorIDs []int64) (map[core.CustomerKey]core.Customer, error) {
	out := make(map[core.CustomerKey]core.Customer)
	if len(codes) == 0 || len(vendorIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, customersByKeySQL, codes, vendorIDs)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out[c.Key()] = c
	}
	return out, rows.Err()
}

func scanCustomer(row pgx.Row) (core.Customer, error) {
	var (
		c         core.Customer
		createdAt time.Time
	)
	err := row.Scan(
		&c.ID, &c.WebsiteID, &c.StoreID, &c.FirstName, &c.LastName, &c.Email,
		&c.DOB, &c.GroupID, &c.CreatedIn, &c.MobileNumber,
		&c.Code, &c.InviteCode, &c.SyncStatus, &c.VendorID, &c.VendorGroupID, &c.ZoneMapping,
		&createdAt, &c.DefaultShippingID, &c.DefaultBillingID,
	)
	if err != nil {
		return core.Customer{}, fmt.Errorf("scan customer: %w", err)
	}
	c.CreatedAt = createdAt
	c.Mode = core.WriteInsert
	return c, nil
}

// upsertCustomerSQL matches on (code, vendor_id). $16 marks an update
// payload, which keeps the stored email and mobile number.
const upsertCustomerSQL = `
INSERT INTO customers (
    website_id, store_id, first_name, last_name, email, dob, group_id, created_in,
    mobile_number, code, invite_code, sync_status, vendor_id, vendor_group_id, zone_mapping
) VALUES (
    $1, $2, $3, $4, $5, NULLIF($6::text, '')::date, $7, $8,
    $9, $10, $11, $12, $13, $14, $15
)
ON CONFLICT (code, vendor_id) DO UPDATE SET
    website_id = EXCLUDED.website_id,
    store_id = EXCLUDED.store_id,
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    email = CASE WHEN $16::boolean THEN customers.email ELSE EXCLUDED.email END,
    dob = EXCLUDED.dob,
    group_id = EXCLUDED.group_id,
    created_in = EXCLUDED.created_in,
    mobile_number = CASE WHEN $16::boolean THEN customers.mobile_number ELSE EXCLUDED.mobile_number END,
    invite_code = EXCLUDED.invite_code,
    sync_status = EXCLUDED.sync_status,
    vendor_group_id = EXCLUDED.vendor_group_id,
    zone_mapping = EXCLUDED.zone_mapping,
    updated_at = now()`

func (s customerStore) Upsert(ctx context.Context, _ core.Scope, customers []core.Customer) error {
	for _, c := range customers {
		if c.Code == "" {
			return errors.New("customer code is required")
		}
	}
	return s.execBatch(ctx, func(b *pgx.Batch) {
		for _, c := range customers {
			b.Queue(upsertCustomerSQL,
				c.WebsiteID, c.StoreID, c.FirstName, c.LastName, c.Email, c.DOB, c.GroupID, c.CreatedIn,
				c.MobileNumber, c.Code, c.InviteCode, c.SyncStatus, c.VendorID, c.VendorGroupID, c.ZoneMapping,
				c.Mode == core.WriteUpdate,
			)
		}
	})
}

const upsertAttributesSQL = `
INSERT INTO customer_attributes (customer_id, isr_status, activation_status)
VALUES ($1, $2, $3)
ON CONFLICT (customer_id) DO UPDATE SET
    isr_status = EXCLUDED.isr_status,
    activation_status = EXCLUDED.activation_status`

func (s customerStore) SaveAttributes(ctx context.Context, attrs []core.CustomerAttributes) error {
	return s.execBatch(ctx, func(b *pgx.Batch) {
		for _, a := range attrs {
			b.Queue(upsertAttributesSQL, a.CustomerID, string(a.ISRStatus), string(a.ActivationStatus))
		}
	})
}

const deleteCustomerSQL = `DELETE FROM customers WHERE id = $1`

// Delete removes a customer. Attributes, addresses, companies and seller
// mappings cascade.
func (s customerStore) Delete(ctx context.Context, scope core.Scope, id int64) error {
	if err := scope.RequireElevated(); err != nil {
		return err
	}
	ct, err := s.db.Exec(ctx, deleteCustomerSQL, id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return nil
}

// ============================================================================
// Whitespace outlets
// ============================================================================

type whitespaceStore struct{ *Store }

const whitespaceByCodeSQL = `SELECT customer_code, id FROM whitespace_outlets WHERE customer_code = ANY($1)`

func (s whitespaceStore) FindByCodes(ctx context.Context, codes []string) (map[string]int64, error) {
	out := make(map[string]int64, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, whitespaceByCodeSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("query whitespace outlets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code string
			id   int64
		)
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("scan whitespace outlet: %w", err)
		}
		out[code] = id
	}
	return out, rows.Err()
}

const upsertWhitespaceSQL = `
INSERT INTO whitespace_outlets (customer_code, seller_code, company_email, telephone, status, invite_code)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (customer_code) DO UPDATE SET
    seller_code = EXCLUDED.seller_code,
    company_email = EXCLUDED.company_email,
    telephone = EXCLUDED.telephone,
    status = EXCLUDED.status,
    invite_code = EXCLUDED.invite_code`

func (s whitespaceStore) Upsert(ctx context.Context, outlets []core.WhitespaceOutlet) error {
	return s.execBatch(ctx, func(b *pgx.Batch) {
		for _, o := range outlets {
			b.Queue(upsertWhitespaceSQL,
				o.CustomerCode, o.SellerCode, o.CompanyEmail, o.Telephone, o.Status, o.InviteCode)
		}
	})
}

// ============================================================================
// Addresses
// ============================================================================

type addressStore struct{ *Store }

const insertAddressSQL = `
INSERT INTO customer_addresses (
    customer_id, first_name, last_name, street, city, postcode, country_id,
    region_id, district, telephone, geo_coordinates, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`

func (s addressStore) Create(ctx context.Context, a core.Address) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, insertAddressSQL,
		a.CustomerID, a.FirstName, a.LastName, a.Street, a.City, a.Postcode, a.CountryID,
		a.RegionID, a.District, a.Telephone, a.GeoCoordinates, string(a.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert address: %w", err)
	}
	return id, nil
}

// updateAddressSQL leaves the default flags alone.
const updateAddressSQL = `
UPDATE customer_addresses SET
    first_name = $2, last_name = $3, street = $4, city = $5, postcode = $6,
    country_id = $7, region_id = $8, district = $9, telephone = $10,
    geo_coordinates = $11, status = $12
WHERE id = $1`

func (s addressStore) Update(ctx context.Context, a core.Address) error {
	ct, err := s.db.Exec(ctx, updateAddressSQL,
		a.ID, a.FirstName, a.LastName, a.Street, a.City, a.Postcode,
		a.CountryID, a.RegionID, a.District, a.Telephone, a.GeoCoordinates, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("update address %d: %w", a.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("address %d: %w", a.ID, ErrNotFound)
	}
	return nil
}

const (
	setDefaultFlagsSQL = `
UPDATE customer_addresses SET
    default_shipping = (id = $2),
    default_billing = (id = $2)
WHERE customer_id = $1`

	setCustomerDefaultsSQL = `
UPDATE customers SET default_shipping_id = $2, default_billing_id = $2, updated_at = now()
WHERE id = $1
  AND EXISTS (SELECT 1 FROM customer_addresses WHERE id = $2 AND customer_id = $1)`
)

// SetDefault makes the address the only default shipping and billing
// address of the customer.
func (s addressStore) SetDefault(ctx context.Context, customerID, addressID int64) error {
	return s.execBatch(ctx, func(b *pgx.Batch) {
		b.Queue(setCustomerDefaultsSQL, customerID, addressID).
			Exec(expectRows("address of customer", addressID))
		b.Queue(setDefaultFlagsSQL, customerID, addressID)
	})
}
