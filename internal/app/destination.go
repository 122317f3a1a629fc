package app

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/rails"
)

const defaultSourceCurrency = "usdc"

// payloadBuilder assembles provider source and destination objects from settings.
// A nil map means the payload cannot be built with the current configuration.
type payloadBuilder struct {
	settings config.BridgeSettings
}

// destination builds the transfer destination for method. When externalAccountID is
// set it replaces any prefunded-account targeting.
func (b payloadBuilder) destination(method domain.PayoutMethod, externalAccountID string) map[string]interface{} {
	externalAccountID = strings.TrimSpace(externalAccountID)

	dest := b.destinationTemplate(method)
	if dest == nil {
		dest = map[string]interface{}{"currency": b.settings.DestinationCurrency(method)}
		if rail := b.settings.DestinationRail(method); rail != "" {
			dest["payment_rail"] = rail
		}
	}
	rail := strings.ToLower(firstString(dest, "payment_rail"))

	if externalAccountID == "" {
		switch rail {
		case "":
			return nil
		case config.RailPrefunded:
			if firstString(dest, "prefunded_account_id") == "" {
				if b.settings.PrefundedAccountID == "" {
					return nil
				}
				dest["prefunded_account_id"] = b.settings.PrefundedAccountID
			}
		}
		return dest
	}

	delete(dest, "prefunded_account_id")
	dest["external_account_id"] = externalAccountID

	if rail == "" || rail == config.RailPrefunded {
		if method == domain.MethodDebit {
			return nil
		}
		dest["payment_rail"] = b.settings.DefaultBankRail()
	}
	return dest
}

// configuredRail reports the destination rail an operator configured for method,
// from the template when present, else from the rail settings.
func (b payloadBuilder) configuredRail(method domain.PayoutMethod) string {
	if template := b.destinationTemplate(method); template != nil {
		return strings.ToLower(firstString(template, "payment_rail"))
	}
	return b.settings.DestinationRail(method)
}

func (b payloadBuilder) destinationTemplate(method domain.PayoutMethod) map[string]interface{} {
	raw, shared := b.settings.DestinationOverrideJSON(method)
	template := parseTemplate(raw, "destination")
	if template == nil {
		return nil
	}
	if shared && method == domain.MethodDebit && !rails.IsDebitLike(firstString(template, "payment_rail")) {
		return nil
	}
	if _, ok := template["currency"]; !ok {
		template["currency"] = b.settings.DestinationCurrency(method)
	}
	return template
}

// source builds the transfer source: the JSON override first, then the configured rail.
// The provider-custodied wallet rail requires its wallet id.
func (b payloadBuilder) source() map[string]interface{} {
	if template := parseTemplate(b.settings.SourceJSON, "source"); template != nil {
		return template
	}

	rail := b.settings.SourceRail
	if rail == "" {
		return nil
	}
	currency := b.settings.SourceCurrency
	if currency == "" {
		currency = defaultSourceCurrency
	}
	src := map[string]interface{}{
		"payment_rail": rail,
		"currency":     currency,
	}
	if b.settings.SourceFromAddress != "" {
		src["from_address"] = b.settings.SourceFromAddress
	}

	switch rail {
	case config.RailBridgeWallet:
		if b.settings.SourceWalletID == "" {
			return nil
		}
		src["bridge_wallet_id"] = b.settings.SourceWalletID
	case config.RailPrefunded:
		if b.settings.PrefundedAccountID == "" {
			return nil
		}
		src["prefunded_account_id"] = b.settings.PrefundedAccountID
	}
	return src
}

// parseTemplate decodes a JSON object override. Invalid JSON is treated as absent.
func parseTemplate(raw, kind string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	var template map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &template); err != nil || len(template) == 0 {
		log.Printf("level=warn component=payload_builder kind=%s msg=\"ignoring invalid json override\" err=%v", kind, err)
		return nil
	}
	return template
}
