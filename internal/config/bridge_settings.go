package config

import (
	"sort"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/rails"
)

const (
	// RailPrefunded pays out of an operator prefunded account and needs its id.
	RailPrefunded = "prefunded"
	// RailBridgeWallet sources funds from a provider-custodied wallet and needs its id.
	RailBridgeWallet = "bridge_wallet"

	defaultCurrency       = "usd"
	defaultBankRail       = "ach"
	onboardingSuccessPath = "/onboarding/complete"
)

// BridgeSettings is the resolved, read-only view of the Bridge configuration.
// Components receive it by value and never read the environment themselves.
type BridgeSettings struct {
	BaseURL               string
	APIKey                string
	APIKeyHeader          string
	RequestTimeout        time.Duration
	TransferTimeout       time.Duration
	RequireOnboarding     bool
	DefaultBankETA        string
	DefaultDebitETA       string
	OnboardingRedirectURI string
	PrefundedAccountID    string
	SourceRail            string
	SourceCurrency        string
	SourceFromAddress     string
	SourceWalletID        string
	SourceJSON            string
	TransferPath          string
	ExternalAccountLimit  int

	enabledRegions map[string]struct{}

	debitRail, debitCurrency string
	bankRail, bankCurrency   string
	debitTokens, bankTokens  []string

	destinationJSON      string
	debitDestinationJSON string
	bankDestinationJSON  string
}

// BridgeSettings resolves the raw environment view into typed settings.
// Missing optional values produce empty fields; nothing here fails.
func (c Config) BridgeSettings() BridgeSettings {
	s := BridgeSettings{
		BaseURL:              strings.TrimRight(strings.TrimSpace(c.BridgeAPIBaseURL), "/"),
		APIKey:               strings.TrimSpace(c.BridgeAPIKey),
		APIKeyHeader:         strings.TrimSpace(c.BridgeAPIKeyHeader),
		RequestTimeout:       time.Duration(c.BridgeRequestTimeoutMS) * time.Millisecond,
		TransferTimeout:      time.Duration(c.BridgeTransferTimeoutMS) * time.Millisecond,
		RequireOnboarding:    c.BridgeRequireOnboarding,
		DefaultBankETA:       strings.TrimSpace(c.BridgeDefaultBankETA),
		DefaultDebitETA:      strings.TrimSpace(c.BridgeDefaultDebitETA),
		PrefundedAccountID:   strings.TrimSpace(c.BridgePrefundedAccountID),
		SourceRail:           strings.ToLower(strings.TrimSpace(c.BridgeSourceRail)),
		SourceCurrency:       strings.ToLower(strings.TrimSpace(c.BridgeSourceCurrency)),
		SourceFromAddress:    strings.TrimSpace(c.BridgeSourceFromAddress),
		SourceWalletID:       strings.TrimSpace(c.BridgeSourceWalletID),
		SourceJSON:           strings.TrimSpace(c.BridgeSourceJSON),
		TransferPath:         strings.TrimSpace(c.BridgeTransferPath),
		ExternalAccountLimit: c.BridgeExternalAccountLimit,
		enabledRegions:       parseRegions(c.BridgeEnabledRegions),
		destinationJSON:      strings.TrimSpace(c.BridgeDestinationJSON),
		debitDestinationJSON: strings.TrimSpace(c.BridgeDebitDestinationJSON),
		bankDestinationJSON:  strings.TrimSpace(c.BridgeBankDestinationJSON),
		debitTokens:          rails.NormalizeTokens(splitCSV(c.BridgeDebitRailTokens)),
		bankTokens:           rails.NormalizeTokens(splitCSV(c.BridgeBankRailTokens)),
	}

	if s.APIKeyHeader == "" {
		s.APIKeyHeader = defaultAPIKeyHeader
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = defaultRequestTimeoutMS * time.Millisecond
	}
	if s.TransferTimeout <= 0 {
		s.TransferTimeout = s.RequestTimeout
	}
	if s.TransferPath == "" {
		s.TransferPath = defaultTransferPath
	}
	if !strings.HasPrefix(s.TransferPath, "/") {
		s.TransferPath = "/" + s.TransferPath
	}
	if s.ExternalAccountLimit <= 0 {
		s.ExternalAccountLimit = defaultExternalAccountLimit
	}

	s.OnboardingRedirectURI = strings.TrimSpace(c.BridgeOnboardingRedirect)
	if s.OnboardingRedirectURI == "" {
		if claimApp := strings.TrimRight(strings.TrimSpace(c.ClaimAppURL), "/"); claimApp != "" {
			s.OnboardingRedirectURI = claimApp + onboardingSuccessPath
		}
	}

	sharedRail := normalizeRail(c.BridgeDestinationRail)
	sharedCurrency := strings.ToLower(strings.TrimSpace(c.BridgeDestinationCurrency))

	// A shared rail is only reused for debit when it looks like a card rail; a bank
	// rail must never leak into a debit-card dispatch.
	s.debitRail = normalizeRail(c.BridgeDebitRail)
	if s.debitRail == "" && rails.IsDebitLike(sharedRail) {
		s.debitRail = sharedRail
	}
	s.debitCurrency = strings.ToLower(strings.TrimSpace(c.BridgeDebitCurrency))
	if s.debitCurrency == "" {
		s.debitCurrency = sharedCurrency
	}

	s.bankRail = normalizeRail(c.BridgeBankRail)
	if s.bankRail == "" && !rails.IsDebitLike(sharedRail) {
		s.bankRail = sharedRail
	}
	s.bankCurrency = strings.ToLower(strings.TrimSpace(c.BridgeBankCurrency))
	if s.bankCurrency == "" {
		s.bankCurrency = sharedCurrency
	}

	return s
}

// RegionEnabled reports whether payouts are enabled for a region code (case-insensitive).
func (s BridgeSettings) RegionEnabled(region string) bool {
	_, ok := s.enabledRegions[strings.ToUpper(strings.TrimSpace(region))]
	return ok
}

// EnabledRegions returns the enabled region codes in sorted order.
func (s BridgeSettings) EnabledRegions() []string {
	out := make([]string, 0, len(s.enabledRegions))
	for region := range s.enabledRegions {
		out = append(out, region)
	}
	sort.Strings(out)
	return out
}

// DestinationRail returns the configured destination rail for method, or "".
func (s BridgeSettings) DestinationRail(method domain.PayoutMethod) string {
	if method == domain.MethodDebit {
		return s.debitRail
	}
	return s.bankRail
}

// DestinationCurrency returns the destination currency for method, defaulting to usd.
func (s BridgeSettings) DestinationCurrency(method domain.PayoutMethod) string {
	currency := s.bankCurrency
	if method == domain.MethodDebit {
		currency = s.debitCurrency
	}
	if currency == "" {
		return defaultCurrency
	}
	return currency
}

// DefaultBankRail is used for bank payouts to a named external account when no rail is configured.
func (s BridgeSettings) DefaultBankRail() string {
	return defaultBankRail
}

// DestinationOverrideJSON returns the raw destination template for method, preferring
// the method-specific template over the shared one. shared is true when the shared
// template was returned; debit only accepts a shared template with a card-like rail.
func (s BridgeSettings) DestinationOverrideJSON(method domain.PayoutMethod) (raw string, shared bool) {
	if method == domain.MethodDebit && s.debitDestinationJSON != "" {
		return s.debitDestinationJSON, false
	}
	if method == domain.MethodBank && s.bankDestinationJSON != "" {
		return s.bankDestinationJSON, false
	}
	return s.destinationJSON, s.destinationJSON != ""
}

// ExpectedRailTokens returns the operator-configured rail tokens for method.
func (s BridgeSettings) ExpectedRailTokens(method domain.PayoutMethod) []string {
	if method == domain.MethodDebit {
		return append([]string(nil), s.debitTokens...)
	}
	return append([]string(nil), s.bankTokens...)
}

// ETA returns the human-readable delivery estimate for method.
func (s BridgeSettings) ETA(method domain.PayoutMethod) string {
	if method == domain.MethodDebit {
		return s.DefaultDebitETA
	}
	return s.DefaultBankETA
}

func parseRegions(raw string) map[string]struct{} {
	regions := make(map[string]struct{})
	for _, region := range splitCSV(raw) {
		regions[strings.ToUpper(region)] = struct{}{}
	}
	if len(regions) == 0 {
		regions[defaultEnabledRegions] = struct{}{}
	}
	return regions
}

func normalizeRail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
