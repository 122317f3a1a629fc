/**
 * @description
 * This file implements recipient eligibility resolution against the payout provider.
 * For a recipient it finds or creates the provider customer, discovers an external
 * account usable for the requested method, and otherwise hands back a hosted
 * onboarding URL. Progress is written to the recipient store once per call.
 *
 * @dependencies
 * - golang.org/x/sync/errgroup: runs the TOS and KYC link lookups concurrently and collects their errors.
 * - internal/rails: rail compatibility of external accounts.
 * - internal/store: recipient persistence.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/metrics"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/rails"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/store"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/bridgeclient"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EligibilityResolver decides whether a recipient can be paid through a method.
type EligibilityResolver struct {
	settings   config.BridgeSettings
	bridge     BridgeAPI
	recipients store.RecipientStore

	newIdempotencyKey func() string
	now               func() time.Time
}

// NewEligibilityResolver creates a resolver over the given provider API and store.
func NewEligibilityResolver(settings config.BridgeSettings, bridge BridgeAPI, recipients store.RecipientStore) *EligibilityResolver {
	return &EligibilityResolver{
		settings:          settings,
		bridge:            bridge,
		recipients:        recipients,
		newIdempotencyKey: uuid.NewString,
		now:               time.Now,
	}
}

// Ensure resolves the recipient for method and returns a typed outcome.
func (r *EligibilityResolver) Ensure(ctx context.Context, transfer domain.TransferSnapshot, method domain.PayoutMethod, recipient *domain.RecipientContext) domain.EligibilityResult {
	result := r.resolve(ctx, method, recipient)

	metrics.RecordEligibility(string(result.Status), result.FailureCode)
	if result.Status == domain.EligibilitySuccess {
		log.Printf("level=info component=eligibility transfer_id=%s method=%s status=%s customer_id=%s external_account_id=%s", transfer.ID, method, result.Status, result.CustomerID, result.ExternalAccountID)
	} else {
		log.Printf("level=info component=eligibility transfer_id=%s method=%s status=%s code=%s reason=%q", transfer.ID, method, result.Status, result.FailureCode, result.FailureReason)
	}
	return result
}

func (r *EligibilityResolver) resolve(ctx context.Context, method domain.PayoutMethod, recipient *domain.RecipientContext) domain.EligibilityResult {
	if !r.settings.RequireOnboarding {
		return domain.EligibilityResult{Status: domain.EligibilitySuccess}
	}
	if r.settings.APIKey == "" {
		return eligibilityFailed(domain.CodeAPIKeyMissing, "bridge api key is not configured")
	}
	if recipient == nil {
		recipient = &domain.RecipientContext{}
	}

	email, ok := recipientEmail(recipient)
	if !ok {
		return domain.EligibilityResult{
			Status:        domain.EligibilityActionRequired,
			MissingFields: []string{"email"},
			FailureCode:   domain.CodeRecipientEmailRequired,
			FailureReason: "a valid recipient email is required to onboard with the payout provider",
		}
	}

	existing, err := r.loadRecipient(ctx, recipient)
	if err != nil {
		log.Printf("level=error component=eligibility msg=\"recipient lookup failed\" err=%v", err)
		return eligibilityFailed(domain.CodeRecipientStoreFailed, "failed to load recipient record")
	}

	if existing != nil &&
		existing.Status == domain.RecipientReady &&
		existing.CustomerID != "" &&
		existing.ExternalAccountID != "" &&
		existing.ExternalAccountMethod == method {
		return domain.EligibilityResult{
			Status:            domain.EligibilitySuccess,
			CustomerID:        existing.CustomerID,
			ExternalAccountID: existing.ExternalAccountID,
		}
	}

	record := domain.RecipientRecord{
		ContactHash: recipient.ContactHash,
		HintHash:    recipient.HintHash,
		Email:       email,
	}
	preferredAccountID := ""
	if existing != nil {
		record = *existing
		record.Email = email
		preferredAccountID = existing.ExternalAccountID
	}

	var found *bridgeclient.KYCLink
	if record.CustomerID == "" {
		found, err = r.bridge.FindKYCLinkByEmail(ctx, email)
		if err != nil {
			return eligibilityProviderFailed(err)
		}
		if found != nil {
			record.CustomerID = strings.TrimSpace(found.CustomerID)
		}
	}

	if record.CustomerID != "" {
		accounts, err := r.bridge.ListExternalAccounts(ctx, record.CustomerID, r.settings.ExternalAccountLimit)
		if err != nil {
			return eligibilityProviderFailed(err)
		}

		matchedID, activeCount := selectExternalAccount(accounts, method, r.settings.ExpectedRailTokens(method), preferredAccountID)
		if matchedID != "" {
			record.Status = domain.RecipientReady
			record.ExternalAccountID = matchedID
			record.ExternalAccountMethod = method
			if err := r.persist(ctx, record); err != nil {
				return eligibilityFailed(domain.CodeRecipientStoreFailed, "failed to persist recipient record")
			}
			return domain.EligibilityResult{
				Status:            domain.EligibilitySuccess,
				CustomerID:        record.CustomerID,
				ExternalAccountID: matchedID,
			}
		}

		if activeCount > 0 {
			record.Status = domain.RecipientReady
			// An account bound for the other method stays bound.
			if record.ExternalAccountMethod == method || record.ExternalAccountMethod == "" {
				record.ExternalAccountID = ""
				record.ExternalAccountMethod = ""
			}
			if existing == nil || record != *existing {
				if err := r.persist(ctx, record); err != nil {
					return eligibilityFailed(domain.CodeRecipientStoreFailed, "failed to persist recipient record")
				}
			}
			result := eligibilityFailed(
				domain.ExternalAccountIneligibleCode(method),
				fmt.Sprintf("recipient has %d active external account(s) but none supports %s payouts", activeCount, strings.ToLower(string(method))),
			)
			result.CustomerID = record.CustomerID
			return result
		}
	}

	tosURL, kycURL, result, ok := r.onboardingLinks(ctx, &record, recipient, email, found)
	if !ok {
		return result
	}

	record.Status = domain.RecipientPendingOnboarding
	record.ExternalAccountID = ""
	record.ExternalAccountMethod = ""
	record.TOSURL = tosURL
	record.KYCURL = kycURL
	record.OnboardingURL = firstNonEmpty(tosURL, kycURL)
	if record.OnboardingURL == "" {
		return eligibilityFailed(domain.CodeOnboardingLinkUnavailable, "payout provider returned no onboarding link")
	}
	if err := r.persist(ctx, record); err != nil {
		return eligibilityFailed(domain.CodeRecipientStoreFailed, "failed to persist recipient record")
	}

	var missing []string
	if tosURL != "" {
		missing = append(missing, "tos")
	}
	if kycURL != "" {
		missing = append(missing, "kyc")
	}
	return domain.EligibilityResult{
		Status:        domain.EligibilityActionRequired,
		CustomerID:    record.CustomerID,
		ActionURL:     record.OnboardingURL,
		MissingFields: missing,
		FailureCode:   domain.CodeOnboardingRequired,
		FailureReason: "recipient must complete payout onboarding",
	}
}

// onboardingLinks creates the customer when none exists, otherwise fetches fresh hosted
// links. ok is false when result carries a terminal failure.
func (r *EligibilityResolver) onboardingLinks(
	ctx context.Context,
	record *domain.RecipientRecord,
	recipient *domain.RecipientContext,
	email string,
	found *bridgeclient.KYCLink,
) (tosURL, kycURL string, result domain.EligibilityResult, ok bool) {
	if record.CustomerID == "" && found != nil {
		// Onboarding started earlier but no customer exists yet; reuse its links.
		return strings.TrimSpace(found.TOSLink), strings.TrimSpace(found.KYCLink), result, true
	}

	if record.CustomerID == "" {
		fullName := strings.TrimSpace(recipient.Name)
		if fullName == "" {
			fullName = email
		}
		link, err := r.bridge.CreateKYCLink(ctx, bridgeclient.CreateKYCLinkRequest{
			FullName:    fullName,
			Email:       email,
			Type:        "individual",
			RedirectURI: r.settings.OnboardingRedirectURI,
		}, r.newIdempotencyKey())
		if err != nil {
			return "", "", eligibilityProviderFailed(err), false
		}
		if link == nil {
			return "", "", eligibilityFailed(domain.CodeOnboardingLinkUnavailable, "payout provider returned no onboarding link"), false
		}
		record.CustomerID = strings.TrimSpace(link.CustomerID)
		return strings.TrimSpace(link.TOSLink), strings.TrimSpace(link.KYCLink), result, true
	}

	var tosErr, kycErr error
	var g errgroup.Group
	g.Go(func() error {
		tosURL, tosErr = r.bridge.GetTOSLink(ctx, record.CustomerID)
		if tosErr != nil {
			return fmt.Errorf("tos link lookup: %w", tosErr)
		}
		return nil
	})
	g.Go(func() error {
		kycURL, kycErr = r.bridge.GetKYCLink(ctx, record.CustomerID, r.settings.OnboardingRedirectURI)
		if kycErr != nil {
			return fmt.Errorf("kyc link lookup: %w", kycErr)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if tosErr != nil && kycErr != nil {
			log.Printf("level=warn component=eligibility customer_id=%s msg=\"onboarding link lookups failed\" tos_err=%q kyc_err=%q", record.CustomerID, tosErr, kycErr)
			// Join keeps the tos error first so the reported code is stable.
			return "", "", eligibilityProviderFailed(errors.Join(tosErr, kycErr)), false
		}
		log.Printf("level=warn component=eligibility customer_id=%s msg=\"one onboarding link lookup failed; using the other\" err=%q", record.CustomerID, err)
	}
	return tosURL, kycURL, result, true
}

func (r *EligibilityResolver) loadRecipient(ctx context.Context, recipient *domain.RecipientContext) (*domain.RecipientRecord, error) {
	if recipient.ContactHash == "" {
		return nil, nil
	}
	record, err := r.recipients.GetRecipientByHashes(ctx, recipient.ContactHash, recipient.HintHash)
	if err != nil {
		if errors.Is(err, store.ErrRecipientNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// persist writes the record once. Records without a contact hash cannot be keyed and
// are skipped.
func (r *EligibilityResolver) persist(ctx context.Context, record domain.RecipientRecord) error {
	if record.ContactHash == "" {
		log.Printf("level=warn component=eligibility customer_id=%s msg=\"recipient has no contact hash; skipping persist\"", record.CustomerID)
		return nil
	}
	now := r.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if err := r.recipients.UpsertRecipient(ctx, record); err != nil {
		log.Printf("level=error component=eligibility customer_id=%s status=%s msg=\"recipient upsert failed\" err=%v", record.CustomerID, record.Status, err)
		return err
	}
	return nil
}

// selectExternalAccount ranks the previously recorded account first and returns the
// first active, rail-compatible account. activeCount counts active accounts seen.
func selectExternalAccount(accounts []map[string]interface{}, method domain.PayoutMethod, expected []string, preferredID string) (matchedID string, activeCount int) {
	ranked := make([]map[string]interface{}, 0, len(accounts))
	if preferredID != "" {
		for _, account := range accounts {
			if firstString(account, "id") == preferredID {
				ranked = append(ranked, account)
			}
		}
	}
	for _, account := range accounts {
		if preferredID == "" || firstString(account, "id") != preferredID {
			ranked = append(ranked, account)
		}
	}

	for _, account := range ranked {
		id := firstString(account, "id")
		if id == "" || !accountActive(account) {
			continue
		}
		activeCount++
		if rails.Matches(account, method, expected) {
			return id, activeCount
		}
	}
	return "", activeCount
}

var inactiveAccountStatuses = map[string]struct{}{
	"inactive":    {},
	"disabled":    {},
	"deleted":     {},
	"closed":      {},
	"deactivated": {},
}

func accountActive(account map[string]interface{}) bool {
	if active, ok := account["active"].(bool); ok && !active {
		return false
	}
	if disabled, ok := account["disabled"].(bool); ok && disabled {
		return false
	}
	if _, inactive := inactiveAccountStatuses[strings.ToLower(firstString(account, "status"))]; inactive {
		return false
	}
	return true
}

// recipientEmail prefers the explicitly supplied email, else an email-typed contact.
func recipientEmail(recipient *domain.RecipientContext) (string, bool) {
	if email, ok := parseEmail(recipient.Email); ok {
		return email, true
	}
	if strings.EqualFold(strings.TrimSpace(recipient.Type), "email") {
		return parseEmail(recipient.Contact)
	}
	return "", false
}

func parseEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

func eligibilityFailed(code, reason string) domain.EligibilityResult {
	return domain.EligibilityResult{
		Status:        domain.EligibilityFailed,
		FailureCode:   code,
		FailureReason: reason,
	}
}

func eligibilityProviderFailed(err error) domain.EligibilityResult {
	code, reason := providerFailure(err)
	return eligibilityFailed(code, reason)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
