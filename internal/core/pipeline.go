package core

import (
	"context"
	"fmt"
	"time"
)

// pipeline runs the address, company, payment and seller-mapping stages
// for one resolved row. It stops at the first failing stage and returns
// the row's tagged errors; nil means the row succeeded.
func (e *Engine) pipeline(ctx context.Context, b *batch, r *rowState, w Writer) []*RowError {
	loc, err := e.resolveLocation(ctx, b.scope, r)
	if err != nil {
		return []*RowError{rowErr(KindAddressSaveFailed, err)}
	}

	addressID, err := e.reconcileAddress(ctx, b, r, loc)
	if err != nil {
		return []*RowError{rowErr(KindAddressSaveFailed, err)}
	}

	companyID, companyErr := e.reconcileCompany(ctx, b.scope, r, loc)
	if companyID == 0 {
		errs := make([]*RowError, 0, 2)
		if companyErr != nil {
			errs = append(errs, companyErr)
		}
		errs = append(errs, rowErr(KindMissingCompanyID, errMissingCompanyID))

		// No customer may outlive a company that could not be created.
		if err := e.stores.Customers.Delete(ctx, b.scope, r.customer.ID); err != nil {
			b.log.Error("delete customer without company",
				"row", r.idx, "customer_id", r.customer.ID, "error", err)
		} else {
			b.log.Info("deleted customer without company", "row", r.idx, "customer_id", r.customer.ID)
		}
		return errs
	}
	if companyErr != nil {
		return []*RowError{companyErr}
	}

	if err := w.Payment(ctx, r.idx, paymentSettings(companyID, &r.rec)); err != nil {
		return []*RowError{rowErr(KindPaymentSaveFailed, err)}
	}

	mapping := e.sellerMapping(r, companyID, addressID)
	mapping.ID = b.mappings[mapping.Key()]
	if err := w.SellerMapping(ctx, r.idx, mapping); err != nil {
		return []*RowError{rowErr(KindSellerMappingSaveFailed, err)}
	}
	return nil
}

// ============================================================================
// Address
// ============================================================================

// location is the row's country and resolved region, shared by the
// address and the company.
type location struct {
	CountryID string
	RegionID  int64
}

func (e *Engine) resolveLocation(ctx context.Context, scope Scope, r *rowState) (location, error) {
	rec := &r.rec
	country := rec.CountryID.String()
	if country == "" {
		country = e.settings.DefaultCountry(scope.WebsiteID)
	}
	regionID, err := e.stores.Regions.RegionID(ctx, rec.Region.String(), country)
	if err != nil {
		return location{}, fmt.Errorf("region %q/%q: %w", rec.Region.String(), country, err)
	}
	return location{CountryID: country, RegionID: regionID}, nil
}

// reconcileAddress updates the customer's default shipping address in
// place, or creates one, and marks it default shipping and billing.
// Repeated rows of a customer reuse the address the batch already saved.
func (e *Engine) reconcileAddress(ctx context.Context, b *batch, r *rowState, loc location) (int64, error) {
	rec := &r.rec
	addr := Address{
		CustomerID:     r.customer.ID,
		FirstName:      rec.FirstName.String(),
		LastName:       rec.LastName.String(),
		Street:         rec.Street.String(),
		City:           rec.City.String(),
		Postcode:       rec.Postcode.String(),
		CountryID:      loc.CountryID,
		RegionID:       loc.RegionID,
		District:       rec.District.String(),
		Telephone:      rec.Telephone.String(),
		GeoCoordinates: rec.GeoCoordinates.String(),
		Status:         r.status.Address,
	}

	if id := b.defaultAddress(r); id != 0 {
		addr.ID = id
		if err := e.stores.Addresses.Update(ctx, addr); err != nil {
			return 0, err
		}
	} else {
		id, err := e.stores.Addresses.Create(ctx, addr)
		if err != nil {
			return 0, err
		}
		addr.ID = id
	}

	if err := e.stores.Addresses.SetDefault(ctx, r.customer.ID, addr.ID); err != nil {
		return 0, err
	}
	b.rememberAddress(r.customer.ID, addr.ID)
	return addr.ID, nil
}

// ============================================================================
// Company
// ============================================================================

// reconcileCompany creates or updates the customer's company and returns
// its id. A zero id means no company exists for the customer afterwards.
func (e *Engine) reconcileCompany(ctx context.Context, scope Scope, r *rowState, loc location) (int64, *RowError) {
	code := r.rec.CustomerCode.String()
	existingID, err := e.stores.Companies.FindIDByCustomer(ctx, r.customer.ID, code)
	if err != nil {
		return 0, rowErr(KindCompanySaveFailed, err)
	}

	company := e.companyPayload(scope, r, loc)
	createdAt := r.customer.CreatedAt
	var id int64

	if existingID == 0 {
		applyNewCompanyStatus(&company, r.status, r.rec.IsB2B(), createdAt)
		if err := e.stores.Companies.Create(ctx, scope, company); err != nil {
			return 0, rowErr(KindCompanySaveFailed, err)
		}
		id, err = e.stores.Companies.FindIDByCustomer(ctx, r.customer.ID, code)
		if err != nil {
			return 0, rowErr(KindCompanySaveFailed, err)
		}
	} else {
		id = existingID
		company.ID = existingID
		applyExistingCompanyStatus(&company, r.status, r.rec.IsB2B(), createdAt)
		if err := e.stores.Companies.Update(ctx, company); err != nil {
			return id, rowErr(KindCompanySaveFailed, err)
		}
	}

	if id != 0 && scope.Currency != "" {
		line := CreditLimit{CompanyID: id, Currency: scope.Currency, Amount: e.settings.InitialCreditLimit()}
		if err := e.stores.Companies.SetCreditLimit(ctx, line); err != nil {
			return id, rowErr(KindCompanySaveFailed, fmt.Errorf("credit limit currency: %w", err))
		}
	}
	return id, nil
}

// applyNewCompanyStatus sets the status of a company about to be created.
// An approved row starts pending unless it is b2b, in which case it is
// approved and activated at the customer's creation time.
func applyNewCompanyStatus(c *Company, s Statuses, b2b bool, createdAt time.Time) {
	if !s.Approved() {
		c.Status = s.Company
		return
	}
	c.Status = CompanyPending
	if b2b {
		c.Status = CompanyApproved
		c.ActivatedAt = &createdAt
	}
}

// applyExistingCompanyStatus sets the status of an existing company. An
// approved non-b2b row leaves the stored status untouched.
func applyExistingCompanyStatus(c *Company, s Statuses, b2b bool, createdAt time.Time) {
	if !s.Approved() {
		c.Status = s.Company
	}
	if b2b {
		if s.Approved() {
			c.Status = CompanyApproved
		}
		c.ActivatedAt = &createdAt
	}
}

func (e *Engine) companyPayload(scope Scope, r *rowState, loc location) Company {
	rec := &r.rec
	outletID := e.settings.RegistrationOutletID(rec.RegistrationOutletID.String())

	var categories [CategorySlots]string
	for i, raw := range rec.CategoryCodes() {
		if mapped, ok := e.settings.CategoryCode(i+1, raw.String()); ok {
			categories[i] = mapped
		}
	}

	whitespace, _ := rec.Whitespace.Int()

	return Company{
		Name:                    rec.CompanyName.String(),
		Street:                  rec.Street.String(),
		City:                    rec.City.String(),
		Postcode:                rec.Postcode.String(),
		CountryID:               loc.CountryID,
		FirstName:               rec.FirstName.String(),
		LastName:                rec.LastName.String(),
		Region:                  rec.Region.String(),
		RegionID:                loc.RegionID,
		District:                rec.District.String(),
		CustomerGroupID:         e.settings.DefaultCustomerGroupID(),
		WebsiteID:               scope.WebsiteID,
		SuperUserID:             r.customer.ID,
		VatTaxID:                rec.VatTaxID.String(),
		GeoCoordinates:          rec.GeoCoordinates.String(),
		CustomerCode:            rec.CustomerCode.String(),
		RegistrationOutletID:    outletID,
		RegistrationSubOutletID: e.settings.RegistrationSubOutletID(outletID, rec.RegistrationSubOutletID.String()),
		SellerCode:              rec.SellerCode.String(),
		DistributorCode:         rec.SellerCode.String(),
		BeatID:                  e.settings.BeatID(rec.BeatID.String()),
		Whitespace:              whitespace,
		DeliveryPriority:        rec.DeliveryPriority.String(),
		B2B:                     rec.IsB2B(),
		TenantCode:              rec.TenantCode.String(),
		ApproverID:              scope.ApproverID,
		CategoryCodes:           categories,
		Telephone:               rec.Telephone.String(),
		Mobile:                  rec.Telephone.String(),
		CompanyEmail:            rec.CompanyEmail.String(),
		Email:                   rec.Email.String(),
	}
}

// ============================================================================
// Payment and seller mapping
// ============================================================================

// paymentSettings forces the applicable method when the row lists any
// available payment methods.
func paymentSettings(companyID int64, rec *OutletRecord) PaymentSettings {
	applicable := rec.ApplicablePaymentMethod.String()
	if rec.AvailablePaymentMethods.Truthy() {
		applicable = ForcedPaymentMethod
	}
	return PaymentSettings{
		CompanyID:               companyID,
		ApplicablePaymentMethod: applicable,
		AvailablePaymentMethods: rec.AvailablePaymentMethods.String(),
	}
}

func (e *Engine) sellerMapping(r *rowState, companyID, addressID int64) SellerMapping {
	return SellerMapping{
		RetailerID:      r.customer.ID,
		SellerID:        r.vendor.SellerID,
		CompanyID:       companyID,
		ERPCode:         r.vendor.ERPCode,
		Status:          r.status.Company,
		SellerCode:      r.rec.SellerCode.String(),
		AddressID:       addressID,
		CustomerGroupID: e.settings.DefaultCustomerGroupID(),
		ERPSyncStatus:   ERPSyncNeeded,
		ZoneIDs:         e.settings.DefaultZone(),
		Email:           r.rec.Email.String(),
	}
}
