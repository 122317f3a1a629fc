/**
 * @description
 * This package decides whether a provider external-account record can carry a payout
 * for a given method. Provider records expose rail information in several shapes
 * (plain strings, arrays, nested objects), so every rail-like field is collected into
 * one flat token set before matching.
 *
 * @notes
 * - An account that exposes no rail information at all is treated as compatible. This
 *   tolerates minimal provider responses and must not be tightened without confirming
 *   the provider's actual response shape.
 * - A bank-only account never matches a debit dispatch.
 */
package rails

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
)

var (
	debitKeywords = []string{"debit", "card", "visa", "mastercard", "maestro"}
	bankKeywords  = []string{"ach", "bank", "sepa", "wire", "swift", "fps", "pix"}

	nonTokenChars = regexp.MustCompile(`[^a-z0-9_]+`)
)

// Field names that may hold rail information on an external-account record.
var railFieldNames = []string{
	"payment_rail",
	"payment_rails",
	"paymentRail",
	"paymentRails",
	"rail",
	"rails",
	"supported_rails",
	"supportedRails",
	"supported_payment_rails",
	"transfer_rails",
	"capabilities",
}

// Nested objects that may wrap rail fields (e.g. {"account": {"payment_rail": "ach"}}).
var nestedContainers = []string{"account", "details", "card", "bank", "debit_card", "us"}

// NormalizeToken lower-cases a rail name and reduces it to [a-z0-9_].
func NormalizeToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, "-", "_")
	token = strings.ReplaceAll(token, " ", "_")
	token = nonTokenChars.ReplaceAllString(token, "")
	return strings.Trim(token, "_")
}

// NormalizeTokens normalizes a list of rail names, dropping empties and duplicates.
func NormalizeTokens(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		token := NormalizeToken(r)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// IsDebitLike reports whether a rail name lexically looks like a card rail.
func IsDebitLike(rail string) bool {
	return containsAny(NormalizeToken(rail), debitKeywords)
}

// IsBankLike reports whether a rail name lexically looks like a bank rail.
func IsBankLike(rail string) bool {
	return containsAny(NormalizeToken(rail), bankKeywords)
}

// AccountTokens collects every rail-like value found on an external-account record.
// The result is sorted so callers and logs see a stable order.
func AccountTokens(account map[string]any) []string {
	set := make(map[string]struct{})
	collectRailFields(account, set)
	for _, container := range nestedContainers {
		if nested, ok := account[container].(map[string]any); ok {
			collectRailFields(nested, set)
		}
	}

	tokens := make([]string, 0, len(set))
	for token := range set {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Matches reports whether account can receive a payout for method.
//
// When expected tokens are configured, the account matches if it exposes no rail data
// or shares at least one token with the expected set. Otherwise lexical heuristics
// decide: a debit dispatch needs a debit-like token, a bank dispatch a bank-like one.
func Matches(account map[string]any, method domain.PayoutMethod, expected []string) bool {
	tokens := AccountTokens(account)
	if len(tokens) == 0 {
		return true
	}

	expectedTokens := NormalizeTokens(expected)
	if len(expectedTokens) > 0 {
		want := make(map[string]struct{}, len(expectedTokens))
		for _, token := range expectedTokens {
			want[token] = struct{}{}
		}
		for _, token := range tokens {
			if _, ok := want[token]; ok {
				return true
			}
		}
		return false
	}

	for _, token := range tokens {
		switch method {
		case domain.MethodDebit:
			if containsAny(token, debitKeywords) {
				return true
			}
		case domain.MethodBank:
			if containsAny(token, bankKeywords) {
				return true
			}
		}
	}
	return false
}

func collectRailFields(record map[string]any, set map[string]struct{}) {
	for _, field := range railFieldNames {
		value, ok := record[field]
		if !ok {
			continue
		}
		collectValue(value, set, 0)
	}
}

// collectValue walks strings, arrays and objects. Object keys are treated as rail
// names when their value is truthy ({"ach": true, "wire": false} -> ["ach"]).
func collectValue(value any, set map[string]struct{}, depth int) {
	if depth > 3 {
		return
	}
	switch v := value.(type) {
	case string:
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '|' }) {
			if token := NormalizeToken(part); token != "" {
				set[token] = struct{}{}
			}
		}
	case []any:
		for _, item := range v {
			collectValue(item, set, depth+1)
		}
	case []string:
		for _, item := range v {
			collectValue(item, set, depth+1)
		}
	case map[string]any:
		for _, key := range []string{"payment_rail", "rail", "name", "type"} {
			if nested, ok := v[key]; ok {
				collectValue(nested, set, depth+1)
			}
		}
		for key, flag := range v {
			if enabled, ok := flag.(bool); ok && enabled {
				if token := NormalizeToken(key); token != "" {
					set[token] = struct{}{}
				}
			}
		}
	}
}

func containsAny(token string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(token, keyword) {
			return true
		}
	}
	return false
}
