package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// classify resolves vendors and existing customers for the whole batch,
// then routes every row: missing code, whitespace outlet, vendor gate,
// status check, customer insert or update.
func (e *Engine) classify(ctx context.Context, b *batch) error {
	var sellerCodes, customerCodes, whitespaceCodes []string
	for i := range b.rows {
		rec := &b.rows[i].rec
		code := rec.CustomerCode.String()
		if code == "" {
			continue
		}
		if rec.IsWhitespace() {
			whitespaceCodes = append(whitespaceCodes, code)
			continue
		}
		customerCodes = append(customerCodes, code)
		sellerCodes = append(sellerCodes, rec.SellerCode.String())
	}

	vendors, err := e.stores.Vendors.FindByCodes(ctx, uniqueStrings(sellerCodes))
	if err != nil {
		return fmt.Errorf("load vendors: %w", err)
	}
	b.vendors = vendors

	vendorIDs := make([]int64, 0, len(vendors))
	for _, v := range vendors {
		vendorIDs = append(vendorIDs, v.SellerID)
	}
	var existing map[CustomerKey]Customer
	if len(vendorIDs) > 0 {
		existing, err = e.stores.Customers.FindByKeys(ctx, uniqueStrings(customerCodes), uniqueInts(vendorIDs))
		if err != nil {
			return fmt.Errorf("load customers: %w", err)
		}
	}

	var whitespaceIDs map[string]int64
	if len(whitespaceCodes) > 0 {
		whitespaceIDs, err = e.stores.Whitespace.FindByCodes(ctx, uniqueStrings(whitespaceCodes))
		if err != nil {
			return fmt.Errorf("load whitespace outlets: %w", err)
		}
	}

	for i := range b.rows {
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		r := &b.rows[i]
		if err := e.classifyRow(ctx, b, r, existing, whitespaceIDs); err != nil {
			b.fail(r, err)
		}
	}
	return nil
}

func (e *Engine) classifyRow(
	ctx context.Context,
	b *batch,
	r *rowState,
	existing map[CustomerKey]Customer,
	whitespaceIDs map[string]int64,
) *RowError {
	if err := e.checkRequired(&r.rec); err != nil {
		return err
	}

	if r.rec.IsWhitespace() {
		outlet := e.whitespaceOutlet(b.scope, &r.rec)
		outlet.ID = whitespaceIDs[outlet.CustomerCode]
		if err := b.writer.Whitespace(ctx, r.idx, outlet); err != nil {
			return rowErr(KindWhitespaceSaveFailed, err)
		}
		// Whitespace rows never reach the customer stages.
		b.stopped[r.idx] = true
		return nil
	}

	vendor, ok := b.vendors[r.rec.SellerCode.String()]
	if !ok || vendor.SellerID == 0 {
		return rowErr(KindVendorNotFound, errVendorNotFound)
	}
	r.vendor = vendor

	status, err := MapStatus(r.rec.Status)
	if err != nil {
		var re *RowError
		errors.As(err, &re)
		return re
	}
	r.status = status

	key := CustomerKey{Code: r.rec.CustomerCode.String(), VendorID: vendor.SellerID}
	c := e.customerPayload(b.scope, r, vendor)
	if found, ok := existing[key]; ok {
		c.ID = found.ID
		c.Mode = WriteUpdate
	}
	if err := b.writer.Customer(ctx, r.idx, c); err != nil {
		return rowErr(KindCustomerSaveFailed, err)
	}
	return nil
}

// checkRequired validates the record's required columns.
func (e *Engine) checkRequired(rec *OutletRecord) *RowError {
	err := e.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return missingFieldErr(verrs[0].Field())
	}
	return rowErr(KindMissingRequiredField, err)
}

// whitespaceOutlet builds the holding record for a whitespace row.
func (e *Engine) whitespaceOutlet(scope Scope, rec *OutletRecord) WhitespaceOutlet {
	return WhitespaceOutlet{
		CustomerCode: rec.CustomerCode.String(),
		SellerCode:   rec.SellerCode.String(),
		CompanyEmail: rec.CompanyEmail.String(),
		Telephone:    rec.Telephone.String(),
		Status:       rec.Whitespace.String(),
		InviteCode:   e.settings.InviteCode(scope.StoreID),
	}
}

// customerPayload builds the insert payload for a row. b2b outlets get the
// b2b sync flag and no invite code.
func (e *Engine) customerPayload(scope Scope, r *rowState, vendor Vendor) Customer {
	rec := &r.rec
	syncStatus := SyncStatusDefault
	inviteCode := e.settings.InviteCode(scope.StoreID)
	if rec.IsB2B() {
		syncStatus = SyncStatusB2B
		inviteCode = ""
	}

	return Customer{
		Mode:          WriteInsert,
		WebsiteID:     scope.WebsiteID,
		StoreID:       scope.StoreID,
		FirstName:     rec.FirstName.String(),
		LastName:      rec.LastName.String(),
		Email:         rec.Email.String(),
		DOB:           rec.DOB.String(),
		GroupID:       e.settings.DefaultCustomerGroupID(),
		CreatedIn:     scope.StoreName,
		MobileNumber:  rec.Telephone.String(),
		Code:          rec.CustomerCode.String(),
		InviteCode:    inviteCode,
		SyncStatus:    syncStatus,
		VendorID:      vendor.SellerID,
		VendorGroupID: vendor.SellerGroupID,
		ZoneMapping:   e.settings.DefaultZone(),
	}
}
