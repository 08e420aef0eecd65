package memstore_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/outletsync/internal/core"
	"github.com/JonMunkholm/outletsync/internal/store/memstore"
)

var scope = core.Scope{StoreID: 1, WebsiteID: 1, Currency: "IDR"}

func addCustomer(t *testing.T, stores core.Stores, code string, vendorID int64) int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, stores.Customers.Upsert(ctx, scope, []core.Customer{{Code: code, VendorID: vendorID}}))
	found, err := stores.Customers.FindByKeys(ctx, []string{code}, []int64{vendorID})
	require.NoError(t, err)
	c, ok := found[core.CustomerKey{Code: code, VendorID: vendorID}]
	require.True(t, ok)
	return c.ID
}

func TestCompanyStore_FindIDByCustomer(t *testing.T) {
	ctx := context.Background()
	stores := memstore.New().Stores()
	owner := addCustomer(t, stores, "C1", 100)
	other := addCustomer(t, stores, "C1", 200)
	stranger := addCustomer(t, stores, "C2", 100)

	require.NoError(t, stores.Companies.Create(ctx, scope, core.Company{SuperUserID: owner, CustomerCode: "C1"}))
	companyID, err := stores.Companies.FindIDByCustomer(ctx, owner, "C1")
	require.NoError(t, err)
	require.NotZero(t, companyID)

	tests := []struct {
		name       string
		customerID int64
		code       string
		want       int64
	}{
		{"owner", owner, "", companyID},
		{"same code", other, "C1", companyID},
		{"same code without code", other, "", 0},
		{"other code", stranger, "C2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stores.Companies.FindIDByCustomer(ctx, tt.customerID, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomerStore_DeleteRemovesDependents(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	stores := store.Stores()
	doomed := addCustomer(t, stores, "C1", 100)
	kept := addCustomer(t, stores, "C2", 100)

	for _, id := range []int64{doomed, kept} {
		require.NoError(t, stores.Customers.SaveAttributes(ctx, []core.CustomerAttributes{{CustomerID: id}}))
		addressID, err := stores.Addresses.Create(ctx, core.Address{CustomerID: id})
		require.NoError(t, err)
		require.NoError(t, stores.Addresses.SetDefault(ctx, id, addressID))

		require.NoError(t, stores.Companies.Create(ctx, scope, core.Company{SuperUserID: id}))
		companyID, err := stores.Companies.FindIDByCustomer(ctx, id, "")
		require.NoError(t, err)
		require.NoError(t, stores.Companies.SetCreditLimit(ctx, core.CreditLimit{CompanyID: companyID, Currency: "IDR"}))
		require.NoError(t, stores.Payments.Upsert(ctx, []core.PaymentSettings{{CompanyID: companyID}}))
		require.NoError(t, stores.Mappings.Upsert(ctx, []core.SellerMapping{
			{RetailerID: id, SellerCode: "S1", CompanyID: companyID, AddressID: addressID},
		}))
	}

	err := stores.Customers.Delete(ctx, scope, doomed)
	assert.ErrorIs(t, err, core.ErrNotElevated)

	require.NoError(t, stores.Customers.Delete(ctx, scope.Elevate(), doomed))

	snap := store.Snapshot()
	require.Len(t, snap.Customers, 1)
	assert.Equal(t, kept, snap.Customers[0].ID)
	require.Len(t, snap.Attributes, 1)
	assert.Equal(t, kept, snap.Attributes[0].CustomerID)
	require.Len(t, snap.Addresses, 1)
	assert.Equal(t, kept, snap.Addresses[0].CustomerID)
	require.Len(t, snap.Companies, 1)
	assert.Equal(t, kept, snap.Companies[0].SuperUserID)
	require.Len(t, snap.Credits, 1)
	assert.Equal(t, snap.Companies[0].ID, snap.Credits[0].CompanyID)
	require.Len(t, snap.Payments, 1)
	assert.Equal(t, snap.Companies[0].ID, snap.Payments[0].CompanyID)
	require.Len(t, snap.Mappings, 1)
	assert.Equal(t, kept, snap.Mappings[0].RetailerID)

	assert.ErrorIs(t, stores.Customers.Delete(ctx, scope.Elevate(), doomed), memstore.ErrNotFound)
}

func TestCompanyStore_SetCreditLimitSeedsAmountOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	stores := store.Stores()
	id := addCustomer(t, stores, "C1", 100)
	require.NoError(t, stores.Companies.Create(ctx, scope, core.Company{SuperUserID: id}))
	companyID, err := stores.Companies.FindIDByCustomer(ctx, id, "")
	require.NoError(t, err)

	opening := decimal.RequireFromString("2500000")
	require.NoError(t, stores.Companies.SetCreditLimit(ctx, core.CreditLimit{CompanyID: companyID, Currency: "IDR", Amount: opening}))
	require.NoError(t, stores.Companies.SetCreditLimit(ctx, core.CreditLimit{CompanyID: companyID, Currency: "USD", Amount: decimal.NewFromInt(1)}))

	snap := store.Snapshot()
	require.Len(t, snap.Credits, 1)
	assert.Equal(t, "USD", snap.Credits[0].Currency)
	assert.True(t, snap.Credits[0].Amount.Equal(opening))

	err = stores.Companies.SetCreditLimit(ctx, core.CreditLimit{CompanyID: companyID + 1, Currency: "IDR"})
	assert.ErrorIs(t, err, memstore.ErrNotFound)
}
