package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// ============================================================================
// Companies
// ============================================================================

type companyStore struct{ *Store }

// companyIDSQL prefers the company owned by the customer and falls back to
// one registered under the same customer code.
const companyIDSQL = `
SELECT id FROM companies
WHERE super_user_id = $1 OR ($2 <> '' AND customer_code = $2)
ORDER BY (super_user_id = $1) DESC, id
LIMIT 1`

// FindIDByCustomer returns the id of the company owned by the customer, or 0.
func (s companyStore) FindIDByCustomer(ctx context.Context, customerID int64, customerCode string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, companyIDSQL, customerID, customerCode).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find company of customer %d: %w", customerID, err)
	}
	return id, nil
}

const insertCompanySQL = `
INSERT INTO companies (
    super_user_id, name, status, activated_at, street, city, postcode, country_id,
    first_name, last_name, region, region_id, district, customer_group_id, website_id,
    vat_tax_id, geo_coordinates, customer_code, registration_outlet_id,
    registration_sub_outlet_id, seller_code, distributor_code, beat_id, whitespace,
    delivery_priority, b2b, tenant_code, approver_id, category_codes,
    telephone, mobile, company_email, email
) VALUES (
    $1, $2, COALESCE(NULLIF($3, ''), 'pending'), $4, $5, $6, $7, $8,
    $9, $10, $11, $12, $13, $14, $15,
    $16, $17, $18, $19,
    $20, $21, $22, $23, $24,
    $25, $26, $27, $28, $29,
    $30, $31, $32, $33
)`

func (s companyStore) Create(ctx context.Context, _ core.Scope, c core.Company) error {
	if _, err := s.db.Exec(ctx, insertCompanySQL, companyArgs(c)...); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// updateCompanySQL keeps the stored status and activation time when the
// payload leaves them unset.
const updateCompanySQL = `
UPDATE companies SET
    super_user_id = $1, name = $2,
    status = COALESCE(NULLIF($3, ''), status),
    activated_at = COALESCE($4, activated_at),
    street = $5, city = $6, postcode = $7, country_id = $8,
    first_name = $9, last_name = $10, region = $11, region_id = $12, district = $13,
    customer_group_id = $14, website_id = $15, vat_tax_id = $16, geo_coordinates = $17,
    customer_code = $18, registration_outlet_id = $19, registration_sub_outlet_id = $20,
    seller_code = $21, distributor_code = $22, beat_id = $23, whitespace = $24,
    delivery_priority = $25, b2b = $26, tenant_code = $27, approver_id = $28,
    category_codes = $29, telephone = $30, mobile = $31, company_email = $32, email = $33
WHERE id = $34`

func (s companyStore) Update(ctx context.Context, c core.Company) error {
	args := append(companyArgs(c), c.ID)
	ct, err := s.db.Exec(ctx, updateCompanySQL, args...)
	if err != nil {
		return fmt.Errorf("update company %d: %w", c.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("company %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

func companyArgs(c core.Company) []any {
	return []any{
		c.SuperUserID, c.Name, string(c.Status), c.ActivatedAt, c.Street, c.City, c.Postcode, c.CountryID,
		c.FirstName, c.LastName, c.Region, c.RegionID, c.District, c.CustomerGroupID, c.WebsiteID,
		c.VatTaxID, c.GeoCoordinates, c.CustomerCode, c.RegistrationOutletID,
		c.RegistrationSubOutletID, c.SellerCode, c.DistributorCode, c.BeatID, c.Whitespace,
		c.DeliveryPriority, c.B2B, c.TenantCode, c.ApproverID, c.CategoryCodes[:],
		c.Telephone, c.Mobile, c.CompanyEmail, c.Email,
	}
}

// setCreditLimitSQL keeps the amount of an existing credit line.
const setCreditLimitSQL = `
INSERT INTO company_credit (company_id, currency, amount)
SELECT id, $2, $3::text::numeric FROM companies WHERE id = $1
ON CONFLICT (company_id) DO UPDATE SET currency = EXCLUDED.currency`

func (s companyStore) SetCreditLimit(ctx context.Context, line core.CreditLimit) error {
	ct, err := s.db.Exec(ctx, setCreditLimitSQL, line.CompanyID, line.Currency, line.Amount.String())
	if err != nil {
		return fmt.Errorf("credit limit of company %d: %w", line.CompanyID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("company %d: %w", line.CompanyID, ErrNotFound)
	}
	return nil
}

const creditSQL = `SELECT company_id, currency, amount::text FROM company_credit WHERE company_id = $1`

// CreditLimit reads a company's credit line.
func (s *Store) CreditLimit(ctx context.Context, companyID int64) (core.CreditLimit, error) {
	var (
		credit core.CreditLimit
		amount string
	)
	err := s.db.QueryRow(ctx, creditSQL, companyID).Scan(&credit.CompanyID, &credit.Currency, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.CreditLimit{}, fmt.Errorf("credit of company %d: %w", companyID, ErrNotFound)
	}
	if err != nil {
		return core.CreditLimit{}, fmt.Errorf("credit of company %d: %w", companyID, err)
	}
	if credit.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.CreditLimit{}, fmt.Errorf("credit amount %q: %w", amount, err)
	}
	return credit, nil
}

// ============================================================================
// Payments
// ============================================================================

type paymentStore struct{ *Store }

const upsertPaymentSQL = `
INSERT INTO company_payments (company_id, applicable_payment_method, available_payment_methods)
VALUES ($1, $2, $3)
ON CONFLICT (company_id) DO UPDATE SET
    applicable_payment_method = EXCLUDED.applicable_payment_method,
    available_payment_methods = EXCLUDED.available_payment_methods`

func (s paymentStore) Upsert(ctx context.Context, settings []core.PaymentSettings) error {
	return s.execBatch(ctx, func(b *pgx.Batch) {
		for _, p := range settings {
			b.Queue(upsertPaymentSQL, p.CompanyID, p.ApplicablePaymentMethod, p.AvailablePaymentMethods)
		}
	})
}

// ============================================================================
// Seller mappings
// ============================================================================

type mappingStore struct{ *Store }

const mappingIDsSQL = `
SELECT retailer_id, seller_code, id FROM seller_mappings
WHERE retailer_id = ANY($1) AND seller_code = ANY($2)`

func (s mappingStore) FindIDs(ctx context.Context, retailerIDs []int64, sellerCodes []string) (map[core.MappingKey]int64, error) {
	out := make(map[core.MappingKey]int64)
	if len(retailerIDs) == 0 || len(sellerCodes) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, mappingIDsSQL, retailerIDs, sellerCodes)
	if err != nil {
		return nil, fmt.Errorf("query seller mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			k  core.MappingKey
			id int64
		)
		if err := rows.Scan(&k.RetailerID, &k.SellerCode, &id); err != nil {
			return nil, fmt.Errorf("scan seller mapping: %w", err)
		}
		out[k] = id
	}
	return out, rows.Err()
}

// upsertMappingSQL matches on (retailer_id, seller_code); the stored id wins.
const upsertMappingSQL = `
INSERT INTO seller_mappings (
    retailer_id, seller_code, seller_id, company_id, erp_code, status, address_id,
    customer_group_id, document_type, tax_id, document_number, erp_sync_status, zone_ids, email
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (retailer_id, seller_code) DO UPDATE SET
    seller_id = EXCLUDED.seller_id,
    company_id = EXCLUDED.company_id,
    erp_code = EXCLUDED.erp_code,
    status = EXCLUDED.status,
    address_id = EXCLUDED.address_id,
    customer_group_id = EXCLUDED.customer_group_id,
    document_type = EXCLUDED.document_type,
    tax_id = EXCLUDED.tax_id,
    document_number = EXCLUDED.document_number,
    erp_sync_status = EXCLUDED.erp_sync_status,
    zone_ids = EXCLUDED.zone_ids,
    email = EXCLUDED.email`

func (s mappingStore) Upsert(ctx context.Context, mappings []core.SellerMapping) error {
	return s.execBatch(ctx, func(b *pgx.Batch) {
		for _, m := range mappings {
			b.Queue(upsertMappingSQL,
				m.RetailerID, m.SellerCode, m.SellerID, m.CompanyID, m.ERPCode, string(m.Status), m.AddressID,
				m.CustomerGroupID, m.DocumentType, m.TaxID, m.DocumentNumber, m.ERPSyncStatus, m.ZoneIDs, m.Email,
			)
		}
	})
}
