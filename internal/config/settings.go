package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// SettingsFile is the on-disk shape of OUTLET_SETTINGS_FILE.
type SettingsFile struct {
	Stores []StoreEntry `yaml:"stores"`

	// InviteCodes overrides OUTLET_INVITE_CODE per store id.
	InviteCodes map[int64]string `yaml:"invite_codes"`

	// DefaultCountries overrides OUTLET_DEFAULT_COUNTRY per website id.
	DefaultCountries map[int64]string `yaml:"default_countries"`

	// CategoryCodes maps raw feed codes to catalog codes, keyed by slot 1..7.
	CategoryCodes map[int]map[string]string `yaml:"category_codes"`

	RegistrationOutlets    map[string]string            `yaml:"registration_outlets"`
	RegistrationSubOutlets map[string]map[string]string `yaml:"registration_sub_outlets"`
	Beats                  map[string]string            `yaml:"beats"`

	// Vendors and Regions seed the memory store driver.
	Vendors []VendorEntry `yaml:"vendors"`
	Regions []RegionEntry `yaml:"regions"`
}

// StoreEntry describes one storefront.
type StoreEntry struct {
	ID        int64  `yaml:"id"`
	WebsiteID int64  `yaml:"website_id"`
	Name      string `yaml:"name"`
	Currency  string `yaml:"currency"`
}

// VendorEntry is a seller known to the memory driver.
type VendorEntry struct {
	SellerCode    string `yaml:"seller_code"`
	SellerID      int64  `yaml:"seller_id"`
	SellerGroupID int64  `yaml:"seller_group_id"`
	ERPCode       string `yaml:"erp_code"`
}

// RegionEntry is a region known to the memory driver.
type RegionEntry struct {
	Code    string `yaml:"code"`
	Country string `yaml:"country"`
	ID      int64  `yaml:"id"`
}

// OutletSettings combines OutletConfig with the settings file. It satisfies
// core.Settings and core.SiteDirectory.
type OutletSettings struct {
	cfg    OutletConfig
	file   SettingsFile
	sites  map[int64]core.StoreInfo
	credit decimal.Decimal
}

// LoadSettings reads cfg.SettingsFile when set. A missing path yields
// settings backed by the environment alone.
func LoadSettings(cfg OutletConfig) (*OutletSettings, error) {
	if cfg.SettingsFile == "" {
		return NewOutletSettings(cfg, SettingsFile{})
	}
	data, err := os.ReadFile(cfg.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	return ParseSettings(cfg, data)
}

// ParseSettings decodes a YAML settings document.
func ParseSettings(cfg OutletConfig, data []byte) (*OutletSettings, error) {
	var file SettingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	return NewOutletSettings(cfg, file)
}

// NewOutletSettings validates file and indexes its stores.
func NewOutletSettings(cfg OutletConfig, file SettingsFile) (*OutletSettings, error) {
	var errs []string
	sites := make(map[int64]core.StoreInfo, len(file.Stores))
	for i, st := range file.Stores {
		if st.ID <= 0 {
			errs = append(errs, fmt.Sprintf("stores[%d]: id must be positive", i))
			continue
		}
		if _, dup := sites[st.ID]; dup {
			errs = append(errs, fmt.Sprintf("stores[%d]: duplicate id %d", i, st.ID))
			continue
		}
		sites[st.ID] = core.StoreInfo{
			StoreID:   st.ID,
			WebsiteID: st.WebsiteID,
			Name:      st.Name,
			Currency:  strings.ToUpper(st.Currency),
		}
	}
	for slot := range file.CategoryCodes {
		if slot < 1 || slot > core.CategorySlots {
			errs = append(errs, fmt.Sprintf("category_codes: slot %d must be 1-%d", slot, core.CategorySlots))
		}
	}
	for i, v := range file.Vendors {
		if v.SellerCode == "" || v.SellerID <= 0 {
			errs = append(errs, fmt.Sprintf("vendors[%d]: seller_code and seller_id are required", i))
		}
	}
	credit, err := parseAmount(cfg.InitialCreditLimit)
	if err != nil {
		errs = append(errs, fmt.Sprintf("OUTLET_INITIAL_CREDIT_LIMIT (%q) must be a non-negative decimal", cfg.InitialCreditLimit))
	}
	if len(errs) > 0 {
		return nil, failures(errs)
	}

	return &OutletSettings{cfg: cfg, file: file, sites: sites, credit: credit}, nil
}

// File returns the decoded settings document.
func (s *OutletSettings) File() SettingsFile { return s.file }

// ============================================================================
// core.Settings
// ============================================================================

func (s *OutletSettings) InviteCode(storeID int64) string {
	if code, ok := s.file.InviteCodes[storeID]; ok {
		return code
	}
	return s.cfg.InviteCode
}

func (s *OutletSettings) DefaultZone() string { return s.cfg.DefaultZone }

func (s *OutletSettings) DefaultCustomerGroupID() int64 { return s.cfg.CustomerGroupID }

func (s *OutletSettings) DefaultCountry(websiteID int64) string {
	if country, ok := s.file.DefaultCountries[websiteID]; ok {
		return country
	}
	return s.cfg.DefaultCountry
}

func (s *OutletSettings) StripPattern() string { return s.cfg.NameStripPattern }

// InitialCreditLimit is the amount given to a credit line when it is opened.
func (s *OutletSettings) InitialCreditLimit() decimal.Decimal { return s.credit }

// CategoryCode looks a raw code up in the slot's table. Unknown codes and
// slots without a table report false.
func (s *OutletSettings) CategoryCode(slot int, code string) (string, bool) {
	if code == "" {
		return "", false
	}
	mapped, ok := s.file.CategoryCodes[slot][code]
	return mapped, ok
}

// RegistrationOutletID returns the known id for raw, or "".
func (s *OutletSettings) RegistrationOutletID(raw string) string {
	return s.file.RegistrationOutlets[raw]
}

// RegistrationSubOutletID returns the sub-outlet id under outletID, or "".
func (s *OutletSettings) RegistrationSubOutletID(outletID, raw string) string {
	if outletID == "" {
		return ""
	}
	return s.file.RegistrationSubOutlets[outletID][raw]
}

// BeatID returns the known beat id for raw, or "".
func (s *OutletSettings) BeatID(raw string) string {
	return s.file.Beats[raw]
}

// ============================================================================
// core.SiteDirectory
// ============================================================================

// Store resolves a storefront listed in the settings file.
func (s *OutletSettings) Store(_ context.Context, storeID int64) (core.StoreInfo, error) {
	info, ok := s.sites[storeID]
	if !ok {
		return core.StoreInfo{}, fmt.Errorf("store %d: %w", storeID, core.ErrStoreNotFound)
	}
	return info, nil
}

// StoreInfos lists every configured storefront.
func (s *OutletSettings) StoreInfos() []core.StoreInfo {
	out := make([]core.StoreInfo, 0, len(s.file.Stores))
	for _, st := range s.file.Stores {
		out = append(out, s.sites[st.ID])
	}
	return out
}
