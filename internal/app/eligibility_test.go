package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/bridgeclient"
)

func onboardingSettings() config.BridgeSettings {
	return config.Config{
		BridgeAPIKey:             "sk-test",
		BridgeRequireOnboarding:  true,
		BridgeOnboardingRedirect: "https://claim.example.com/onboarding/complete",
	}.BridgeSettings()
}

func newTestResolver(settings config.BridgeSettings, bridge *bridgeStub, recipients *recipientStoreStub) *EligibilityResolver {
	resolver := NewEligibilityResolver(settings, bridge, recipients)
	resolver.newIdempotencyKey = func() string { return "idem-fixed" }
	resolver.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return resolver
}

func emailRecipient() *domain.RecipientContext {
	return &domain.RecipientContext{
		Type:        "email",
		Contact:     "ada@example.com",
		ContactHash: "contact-hash",
		HintHash:    "hint-hash",
		Name:        "Ada Lovelace",
	}
}

func TestEnsure_OnboardingNotRequiredIsNoop(t *testing.T) {
	bridge := &bridgeStub{}
	resolver := newTestResolver(config.Config{}.BridgeSettings(), bridge, &recipientStoreStub{})

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, nil)
	if result.Status != domain.EligibilitySuccess {
		t.Fatalf("expected SUCCESS, got %+v", result)
	}
	if bridge.totalCalls() != 0 {
		t.Fatalf("expected no provider calls, got %d", bridge.totalCalls())
	}
}

func TestEnsure_MissingAPIKeyFails(t *testing.T) {
	settings := config.Config{BridgeRequireOnboarding: true}.BridgeSettings()
	resolver := newTestResolver(settings, &bridgeStub{}, &recipientStoreStub{})

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())
	if result.Status != domain.EligibilityFailed || result.FailureCode != domain.CodeAPIKeyMissing {
		t.Fatalf("expected FAILED %s, got %+v", domain.CodeAPIKeyMissing, result)
	}
}

func TestEnsure_RequiresEmail(t *testing.T) {
	tests := []struct {
		name      string
		recipient *domain.RecipientContext
	}{
		{name: "no recipient", recipient: nil},
		{name: "phone contact", recipient: &domain.RecipientContext{Type: "phone", Contact: "+15555550100"}},
		{name: "malformed email contact", recipient: &domain.RecipientContext{Type: "email", Contact: "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := &bridgeStub{}
			resolver := newTestResolver(onboardingSettings(), bridge, &recipientStoreStub{})

			result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, tt.recipient)
			if result.Status != domain.EligibilityActionRequired {
				t.Fatalf("expected ACTION_REQUIRED, got %+v", result)
			}
			if result.FailureCode != domain.CodeRecipientEmailRequired {
				t.Fatalf("expected %s, got %s", domain.CodeRecipientEmailRequired, result.FailureCode)
			}
			if !reflect.DeepEqual(result.MissingFields, []string{"email"}) {
				t.Fatalf("expected missing email field, got %v", result.MissingFields)
			}
			if bridge.totalCalls() != 0 {
				t.Fatalf("expected no provider calls, got %d", bridge.totalCalls())
			}
		})
	}
}

func TestEnsure_ExplicitEmailWinsOverContact(t *testing.T) {
	bridge := &bridgeStub{
		createResult: &bridgeclient.KYCLink{CustomerID: "cus_new", TOSLink: "https://tos"},
	}
	resolver := newTestResolver(onboardingSettings(), bridge, &recipientStoreStub{})

	recipient := &domain.RecipientContext{Type: "phone", Contact: "+15555550100", ContactHash: "h", Email: "Grace@Example.com"}
	resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, recipient)

	if bridge.createRequest.Email != "grace@example.com" {
		t.Fatalf("expected normalized explicit email, got %q", bridge.createRequest.Email)
	}
}

func TestEnsure_ReadyRecordIsIdempotent(t *testing.T) {
	bridge := &bridgeStub{}
	recipients := &recipientStoreStub{record: &domain.RecipientRecord{
		ContactHash:           "contact-hash",
		HintHash:              "hint-hash",
		CustomerID:            "cus_1",
		ExternalAccountID:     "ea_1",
		ExternalAccountMethod: domain.MethodBank,
		Status:                domain.RecipientReady,
	}}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	first := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())
	second := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())

	if first.Status != domain.EligibilitySuccess || first.ExternalAccountID != "ea_1" || first.CustomerID != "cus_1" {
		t.Fatalf("unexpected first result %+v", first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	if bridge.totalCalls() != 0 {
		t.Fatalf("expected no provider calls, got %d", bridge.totalCalls())
	}
	if len(recipients.upserts) != 0 {
		t.Fatalf("expected no writes, got %d", len(recipients.upserts))
	}
}

func TestEnsure_NewRecipientCreatesCustomerAndReturnsOnboarding(t *testing.T) {
	bridge := &bridgeStub{
		createResult: &bridgeclient.KYCLink{
			CustomerID: "cus_new",
			TOSLink:    "https://bridge.example/tos",
			KYCLink:    "https://bridge.example/kyc",
		},
	}
	recipients := &recipientStoreStub{}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())

	if result.Status != domain.EligibilityActionRequired {
		t.Fatalf("expected ACTION_REQUIRED, got %+v", result)
	}
	if result.ActionURL != "https://bridge.example/tos" {
		t.Fatalf("expected TOS link to be preferred, got %q", result.ActionURL)
	}
	if result.FailureCode != domain.CodeOnboardingRequired {
		t.Fatalf("expected %s, got %s", domain.CodeOnboardingRequired, result.FailureCode)
	}
	if !reflect.DeepEqual(result.MissingFields, []string{"tos", "kyc"}) {
		t.Fatalf("expected tos and kyc missing, got %v", result.MissingFields)
	}
	if bridge.createCalls != 1 || bridge.createIdempotency != "idem-fixed" {
		t.Fatalf("expected one create call with idempotency key, got calls=%d key=%q", bridge.createCalls, bridge.createIdempotency)
	}
	if bridge.createRequest.FullName != "Ada Lovelace" || bridge.createRequest.RedirectURI != "https://claim.example.com/onboarding/complete" {
		t.Fatalf("unexpected create request %+v", bridge.createRequest)
	}
	if bridge.listCalls != 0 {
		t.Fatalf("expected no account listing without a customer, got %d", bridge.listCalls)
	}

	if len(recipients.upserts) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(recipients.upserts))
	}
	saved := recipients.upserts[0]
	if saved.Status != domain.RecipientPendingOnboarding || saved.CustomerID != "cus_new" {
		t.Fatalf("unexpected persisted record %+v", saved)
	}
	if saved.TOSURL != "https://bridge.example/tos" || saved.KYCURL != "https://bridge.example/kyc" || saved.OnboardingURL != "https://bridge.example/tos" {
		t.Fatalf("unexpected persisted urls %+v", saved)
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set, got %+v", saved)
	}
}

func TestEnsure_ExistingCustomerWithMatchingAccount(t *testing.T) {
	bridge := &bridgeStub{
		findResult: &bridgeclient.KYCLink{CustomerID: "cus_1"},
		accounts: []map[string]interface{}{
			{"id": "ea_inactive", "active": false, "payment_rail": "ach"},
			{"id": "ea_bank", "active": true, "payment_rail": "ach"},
		},
	}
	recipients := &recipientStoreStub{}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())

	if result.Status != domain.EligibilitySuccess || result.CustomerID != "cus_1" || result.ExternalAccountID != "ea_bank" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(recipients.upserts) != 1 {
		t.Fatalf("expected one write, got %d", len(recipients.upserts))
	}
	saved := recipients.upserts[0]
	if saved.Status != domain.RecipientReady || saved.ExternalAccountID != "ea_bank" || saved.ExternalAccountMethod != domain.MethodBank {
		t.Fatalf("unexpected persisted record %+v", saved)
	}
	if bridge.createCalls != 0 || bridge.tosCalls != 0 || bridge.kycCalls != 0 {
		t.Fatalf("expected no onboarding calls, got create=%d tos=%d kyc=%d", bridge.createCalls, bridge.tosCalls, bridge.kycCalls)
	}
}

func TestEnsure_PrefersRecordedAccount(t *testing.T) {
	bridge := &bridgeStub{
		accounts: []map[string]interface{}{
			{"id": "ea_first", "active": true},
			{"id": "ea_recorded", "active": true},
		},
	}
	recipients := &recipientStoreStub{record: &domain.RecipientRecord{
		ContactHash:           "contact-hash",
		HintHash:              "hint-hash",
		CustomerID:            "cus_1",
		ExternalAccountID:     "ea_recorded",
		ExternalAccountMethod: domain.MethodDebit,
		Status:                domain.RecipientReady,
	}}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())

	if result.Status != domain.EligibilitySuccess || result.ExternalAccountID != "ea_recorded" {
		t.Fatalf("expected recorded account to win, got %+v", result)
	}
	if bridge.findCalls != 0 {
		t.Fatalf("expected stored customer id to skip email lookup, got %d calls", bridge.findCalls)
	}
}

func TestEnsure_ActiveAccountsWithWrongRailAreIneligible(t *testing.T) {
	bridge := &bridgeStub{
		findResult: &bridgeclient.KYCLink{CustomerID: "cus_1"},
		accounts: []map[string]interface{}{
			{"id": "ea_bank", "active": true, "payment_rail": "ach"},
		},
	}
	recipients := &recipientStoreStub{}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodDebit, emailRecipient())

	if result.Status != domain.EligibilityFailed || result.FailureCode != "BRIDGE_DEBIT_EXTERNAL_ACCOUNT_INELIGIBLE" {
		t.Fatalf("expected debit ineligible failure, got %+v", result)
	}
	if bridge.tosCalls != 0 || bridge.kycCalls != 0 || bridge.createCalls != 0 {
		t.Fatal("expected no fall through to onboarding")
	}
	if len(recipients.upserts) != 1 || recipients.upserts[0].Status != domain.RecipientReady || recipients.upserts[0].ExternalAccountID != "" {
		t.Fatalf("expected READY record without account, got %+v", recipients.upserts)
	}
}

func TestEnsure_IneligibleDebitKeepsBankBinding(t *testing.T) {
	bridge := &bridgeStub{
		accounts: []map[string]interface{}{
			{"id": "ea_bank", "active": true, "payment_rail": "ach"},
		},
	}
	recipients := &recipientStoreStub{record: &domain.RecipientRecord{
		ContactHash:           "contact-hash",
		HintHash:              "hint-hash",
		Email:                 "ada@example.com",
		CustomerID:            "cus_1",
		ExternalAccountID:     "ea_bank",
		ExternalAccountMethod: domain.MethodBank,
		Status:                domain.RecipientReady,
	}}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	debit := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodDebit, emailRecipient())
	if debit.Status != domain.EligibilityFailed || debit.FailureCode != "BRIDGE_DEBIT_EXTERNAL_ACCOUNT_INELIGIBLE" {
		t.Fatalf("expected debit ineligible failure, got %+v", debit)
	}
	if len(recipients.upserts) != 0 {
		t.Fatalf("expected unchanged record not to be rewritten, got %+v", recipients.upserts)
	}

	bank := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())
	if bank.Status != domain.EligibilitySuccess || bank.ExternalAccountID != "ea_bank" || bank.CustomerID != "cus_1" {
		t.Fatalf("expected bank binding to survive, got %+v", bank)
	}
	if bridge.listCalls != 1 || bridge.totalCalls() != 1 {
		t.Fatalf("expected only the debit account listing, got list=%d total=%d", bridge.listCalls, bridge.totalCalls())
	}
}

func TestEnsure_ExistingCustomerWithoutAccountsFetchesLinks(t *testing.T) {
	tests := []struct {
		name       string
		tosURL     string
		tosErr     error
		kycURL     string
		kycErr     error
		wantStatus domain.EligibilityStatus
		wantCode   string
		wantURL    string
		wantWrites int
	}{
		{
			name:       "both links available",
			tosURL:     "https://tos",
			kycURL:     "https://kyc",
			wantStatus: domain.EligibilityActionRequired,
			wantCode:   domain.CodeOnboardingRequired,
			wantURL:    "https://tos",
			wantWrites: 1,
		},
		{
			name:       "tos lookup fails and kyc is used",
			tosErr:     &bridgeclient.APIError{StatusCode: 500, Message: "boom"},
			kycURL:     "https://kyc",
			wantStatus: domain.EligibilityActionRequired,
			wantCode:   domain.CodeOnboardingRequired,
			wantURL:    "https://kyc",
			wantWrites: 1,
		},
		{
			name:       "both lookups fail",
			tosErr:     &bridgeclient.APIError{StatusCode: 502, Message: "bad gateway"},
			kycErr:     errors.New("network down"),
			wantStatus: domain.EligibilityFailed,
			wantCode:   "BRIDGE_HTTP_502",
		},
		{
			name:       "no usable link",
			wantStatus: domain.EligibilityFailed,
			wantCode:   domain.CodeOnboardingLinkUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := &bridgeStub{
				findResult: &bridgeclient.KYCLink{CustomerID: "cus_1"},
				tosURL:     tt.tosURL,
				tosErr:     tt.tosErr,
				kycURL:     tt.kycURL,
				kycErr:     tt.kycErr,
			}
			recipients := &recipientStoreStub{}
			resolver := newTestResolver(onboardingSettings(), bridge, recipients)

			result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())

			if result.Status != tt.wantStatus || result.FailureCode != tt.wantCode {
				t.Fatalf("expected %s/%s, got %+v", tt.wantStatus, tt.wantCode, result)
			}
			if result.ActionURL != tt.wantURL {
				t.Fatalf("expected action url %q, got %q", tt.wantURL, result.ActionURL)
			}
			if bridge.tosCalls != 1 || bridge.kycCalls != 1 {
				t.Fatalf("expected both link lookups, got tos=%d kyc=%d", bridge.tosCalls, bridge.kycCalls)
			}
			if bridge.createCalls != 0 {
				t.Fatalf("expected no customer creation, got %d", bridge.createCalls)
			}
			if len(recipients.upserts) != tt.wantWrites {
				t.Fatalf("expected %d writes, got %d", tt.wantWrites, len(recipients.upserts))
			}
		})
	}
}

func TestEnsure_BothLinkLookupsFailingReportsBothErrors(t *testing.T) {
	bridge := &bridgeStub{
		findResult: &bridgeclient.KYCLink{CustomerID: "cus_1"},
		tosErr:     errors.New("tos down"),
		kycErr:     errors.New("kyc down"),
	}
	recipients := &recipientStoreStub{}
	resolver := newTestResolver(onboardingSettings(), bridge, recipients)

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())

	if result.Status != domain.EligibilityFailed || result.FailureCode != domain.CodeRequestFailed {
		t.Fatalf("expected FAILED %s, got %+v", domain.CodeRequestFailed, result)
	}
	if !strings.Contains(result.FailureReason, "tos down") || !strings.Contains(result.FailureReason, "kyc down") {
		t.Fatalf("expected both lookup errors in reason, got %q", result.FailureReason)
	}
	if len(recipients.upserts) != 0 {
		t.Fatalf("expected no writes, got %d", len(recipients.upserts))
	}
}

func TestEnsure_ProviderLookupFailureIsTyped(t *testing.T) {
	bridge := &bridgeStub{findErr: &bridgeclient.APIError{StatusCode: 504, Message: "request timed out", Timeout: true}}
	resolver := newTestResolver(onboardingSettings(), bridge, &recipientStoreStub{})

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())
	if result.Status != domain.EligibilityFailed || result.FailureCode != "BRIDGE_HTTP_504" || result.FailureReason != "request timed out" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEnsure_StoreWriteFailureFails(t *testing.T) {
	bridge := &bridgeStub{createResult: &bridgeclient.KYCLink{CustomerID: "cus_new", KYCLink: "https://kyc"}}
	resolver := newTestResolver(onboardingSettings(), bridge, &recipientStoreStub{putErr: errors.New("db down")})

	result := resolver.Ensure(context.Background(), domain.TransferSnapshot{ID: "t1"}, domain.MethodBank, emailRecipient())
	if result.Status != domain.EligibilityFailed || result.FailureCode != domain.CodeRecipientStoreFailed {
		t.Fatalf("unexpected result %+v", result)
	}
}
