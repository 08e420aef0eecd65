package core

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sync status values written on customers.
const (
	SyncStatusDefault = 0
	SyncStatusB2B     = 4
)

// ERPSyncNeeded marks a seller mapping for the downstream ERP sync.
const ERPSyncNeeded = 1

// ForcedPaymentMethod is the applicable payment method used whenever the
// row lists available payment methods.
const ForcedPaymentMethod = "2"

// Vendor is a seller that outlets are attached to.
type Vendor struct {
	SellerCode    string
	SellerID      int64
	SellerGroupID int64
	ERPCode       string
}

// CustomerKey is the natural key of a customer.
type CustomerKey struct {
	Code     string
	VendorID int64
}

// WriteMode says whether a customer payload was built for a new or an
// existing customer. Updates keep the stored email and mobile number.
type WriteMode int

const (
	WriteInsert WriteMode = iota
	WriteUpdate
)

// Customer is a storefront customer account.
type Customer struct {
	ID                int64
	Mode              WriteMode
	WebsiteID         int64
	StoreID           int64
	FirstName         string
	LastName          string
	Email             string
	DOB               string
	GroupID           int64
	CreatedIn         string
	MobileNumber      string
	Code              string
	InviteCode        string
	SyncStatus        int
	VendorID          int64
	VendorGroupID     int64
	ZoneMapping       string
	CreatedAt         time.Time
	DefaultShippingID int64
	DefaultBillingID  int64
}

// Key returns the natural key of the customer.
func (c Customer) Key() CustomerKey {
	return CustomerKey{Code: c.Code, VendorID: c.VendorID}
}

// CustomerAttributes are the lifecycle attributes stored beside a customer.
type CustomerAttributes struct {
	CustomerID       int64
	ISRStatus        CompanyStatus
	ActivationStatus ActivationStatus
}

// WhitespaceOutlet is an outlet parked without operational entities.
type WhitespaceOutlet struct {
	ID           int64
	CustomerCode string
	SellerCode   string
	CompanyEmail string
	Telephone    string
	Status       string
	InviteCode   string
}

// Address is a customer postal address.
type Address struct {
	ID              int64
	CustomerID      int64
	FirstName       string
	LastName        string
	Street          string
	City            string
	Postcode        string
	CountryID       string
	RegionID        int64
	District        string
	Telephone       string
	GeoCoordinates  string
	Status          AddressStatus
	DefaultShipping bool
	DefaultBilling  bool
}

// Company is the business account owned by a customer.
type Company struct {
	ID                      int64
	Name                    string
	Street                  string
	City                    string
	Postcode                string
	CountryID               string
	FirstName               string
	LastName                string
	Region                  string
	RegionID                int64
	District                string
	CustomerGroupID         int64
	WebsiteID               int64
	SuperUserID             int64
	VatTaxID                string
	GeoCoordinates          string
	CustomerCode            string
	RegistrationOutletID    string
	RegistrationSubOutletID string
	SellerCode              string
	DistributorCode         string
	BeatID                  string
	Whitespace              int
	DeliveryPriority        string
	B2B                     bool
	TenantCode              string
	ApproverID              int64
	CategoryCodes           [CategorySlots]string
	Telephone               string
	Mobile                  string
	CompanyEmail            string
	Email                   string

	// Status empty means keep the stored status.
	Status CompanyStatus
	// ActivatedAt nil means keep the stored activation time.
	ActivatedAt *time.Time
}

// CreditLimit is the credit line attached to a company.
type CreditLimit struct {
	CompanyID int64
	Currency  string
	Amount    decimal.Decimal
}

// PaymentSettings are the payment methods enabled for a company.
type PaymentSettings struct {
	CompanyID               int64
	ApplicablePaymentMethod string
	AvailablePaymentMethods string
}

// MappingKey is the natural key of a seller mapping.
type MappingKey struct {
	RetailerID int64
	SellerCode string
}

// SellerMapping associates a retailer with a seller.
type SellerMapping struct {
	ID              int64
	RetailerID      int64
	SellerID        int64
	CompanyID       int64
	ERPCode         string
	Status          CompanyStatus
	SellerCode      string
	AddressID       int64
	CustomerGroupID int64
	DocumentType    string
	TaxID           string
	DocumentNumber  string
	ERPSyncStatus   int
	ZoneIDs         string
	Email           string
}

// Key returns the natural key of the mapping.
func (m SellerMapping) Key() MappingKey {
	return MappingKey{RetailerID: m.RetailerID, SellerCode: m.SellerCode}
}

// StoreInfo describes the storefront a batch targets.
type StoreInfo struct {
	StoreID   int64
	WebsiteID int64
	Name      string
	Currency  string
}

// VendorStore resolves sellers by code.
type VendorStore interface {
	FindByCodes(ctx context.Context, codes []string) (map[string]Vendor, error)
}

// CustomerStore persists customers. Upsert matches on (code, vendor id).
type CustomerStore interface {
	FindByKeys(ctx context.Context, codes []string, vendorIDs []int64) (map[CustomerKey]Customer, error)
	Upsert(ctx context.Context, scope Scope, customers []Customer) error
	SaveAttributes(ctx context.Context, attrs []CustomerAttributes) error
	Delete(ctx context.Context, scope Scope, id int64) error
}

// WhitespaceStore persists whitespace outlets keyed by customer code.
type WhitespaceStore interface {
	FindByCodes(ctx context.Context, codes []string) (map[string]int64, error)
	Upsert(ctx context.Context, outlets []WhitespaceOutlet) error
}

// AddressStore persists customer addresses.
type AddressStore interface {
	Create(ctx context.Context, a Address) (int64, error)
	Update(ctx context.Context, a Address) error
	SetDefault(ctx context.Context, customerID, addressID int64) error
}

// CompanyStore persists companies and their credit lines.
type CompanyStore interface {
	FindIDByCustomer(ctx context.Context, customerID int64, customerCode string) (int64, error)
	Create(ctx context.Context, scope Scope, c Company) error
	Update(ctx context.Context, c Company) error
	// SetCreditLimit sets the currency of the company's credit line. The
	// amount only applies when the line is opened.
	SetCreditLimit(ctx context.Context, line CreditLimit) error
}

// PaymentStore persists payment settings keyed by company id.
type PaymentStore interface {
	Upsert(ctx context.Context, settings []PaymentSettings) error
}

// SellerMappingStore persists retailer/seller associations.
type SellerMappingStore interface {
	FindIDs(ctx context.Context, retailerIDs []int64, sellerCodes []string) (map[MappingKey]int64, error)
	Upsert(ctx context.Context, mappings []SellerMapping) error
}

// RegionLookup resolves a region code within a country. Unknown regions
// resolve to 0.
type RegionLookup interface {
	RegionID(ctx context.Context, regionCode, countryID string) (int64, error)
}

// ErrStoreNotFound is wrapped by SiteDirectory implementations for
// unknown store ids.
var ErrStoreNotFound = errors.New("store not found")

// SiteDirectory resolves a store identifier.
type SiteDirectory interface {
	Store(ctx context.Context, storeID int64) (StoreInfo, error)
}

// Stores bundles every collaborator the engine writes through.
type Stores struct {
	Vendors    VendorStore
	Customers  CustomerStore
	Whitespace WhitespaceStore
	Addresses  AddressStore
	Companies  CompanyStore
	Payments   PaymentStore
	Mappings   SellerMappingStore
	Regions    RegionLookup
	Sites      SiteDirectory
}
