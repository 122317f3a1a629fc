package app

import (
	"testing"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/config"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
)

func TestPayloadBuilder_Destination(t *testing.T) {
	tests := []struct {
		name              string
		cfg               config.Config
		method            domain.PayoutMethod
		externalAccountID string
		wantNil           bool
		want              map[string]interface{}
	}{
		{
			name:    "bank without rail or account cannot be built",
			cfg:     config.Config{},
			method:  domain.MethodBank,
			wantNil: true,
		},
		{
			name:              "bank account falls back to default rail",
			cfg:               config.Config{},
			method:            domain.MethodBank,
			externalAccountID: "ea_1",
			want:              map[string]interface{}{"payment_rail": "ach", "currency": "usd", "external_account_id": "ea_1"},
		},
		{
			name:              "debit account without debit rail cannot be built",
			cfg:               config.Config{BridgeDestinationRail: "ach"},
			method:            domain.MethodDebit,
			externalAccountID: "ea_1",
			wantNil:           true,
		},
		{
			name:              "debit account with card rail",
			cfg:               config.Config{BridgeDebitRail: "debit_card", BridgeDebitCurrency: "USD"},
			method:            domain.MethodDebit,
			externalAccountID: "ea_2",
			want:              map[string]interface{}{"payment_rail": "debit_card", "currency": "usd", "external_account_id": "ea_2"},
		},
		{
			name:    "prefunded rail without account id fails",
			cfg:     config.Config{BridgeBankRail: "prefunded"},
			method:  domain.MethodBank,
			wantNil: true,
		},
		{
			name:   "prefunded rail with account id",
			cfg:    config.Config{BridgeBankRail: "prefunded", BridgePrefundedAccountID: "pf_1"},
			method: domain.MethodBank,
			want:   map[string]interface{}{"payment_rail": "prefunded", "currency": "usd", "prefunded_account_id": "pf_1"},
		},
		{
			name:              "external account replaces prefunded targeting",
			cfg:               config.Config{BridgeBankDestinationJSON: `{"payment_rail":"wire","currency":"usd","prefunded_account_id":"pf_1"}`},
			method:            domain.MethodBank,
			externalAccountID: "ea_3",
			want:              map[string]interface{}{"payment_rail": "wire", "currency": "usd", "external_account_id": "ea_3"},
		},
		{
			name:              "shared bank template is ignored for debit",
			cfg:               config.Config{BridgeDestinationJSON: `{"payment_rail":"ach","currency":"usd"}`},
			method:            domain.MethodDebit,
			externalAccountID: "ea_4",
			wantNil:           true,
		},
		{
			name:              "invalid json template falls back to rail settings",
			cfg:               config.Config{BridgeBankDestinationJSON: `{not json`, BridgeBankRail: "wire"},
			method:            domain.MethodBank,
			externalAccountID: "ea_5",
			want:              map[string]interface{}{"payment_rail": "wire", "currency": "usd", "external_account_id": "ea_5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := payloadBuilder{settings: tt.cfg.BridgeSettings()}
			got := builder.destination(tt.method, tt.externalAccountID)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil destination, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected destination, got nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for key, value := range tt.want {
				if got[key] != value {
					t.Fatalf("expected %s=%v, got %v (full: %v)", key, value, got[key], got)
				}
			}
		})
	}
}

func TestPayloadBuilder_Source(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantNil bool
		want    map[string]interface{}
	}{
		{
			name:    "nothing configured",
			cfg:     config.Config{},
			wantNil: true,
		},
		{
			name: "json override wins",
			cfg:  config.Config{BridgeSourceJSON: `{"payment_rail":"base","currency":"usdc"}`, BridgeSourceRail: "ethereum"},
			want: map[string]interface{}{"payment_rail": "base", "currency": "usdc"},
		},
		{
			name: "rail with from address and default currency",
			cfg:  config.Config{BridgeSourceRail: "Ethereum", BridgeSourceFromAddress: "0xabc"},
			want: map[string]interface{}{"payment_rail": "ethereum", "currency": "usdc", "from_address": "0xabc"},
		},
		{
			name:    "custodied wallet requires wallet id",
			cfg:     config.Config{BridgeSourceRail: "bridge_wallet"},
			wantNil: true,
		},
		{
			name: "custodied wallet with wallet id",
			cfg:  config.Config{BridgeSourceRail: "bridge_wallet", BridgeSourceCurrency: "USDB", BridgeSourceWalletID: "wal_1"},
			want: map[string]interface{}{"payment_rail": "bridge_wallet", "currency": "usdb", "bridge_wallet_id": "wal_1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := payloadBuilder{settings: tt.cfg.BridgeSettings()}.source()
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil source, got %v", got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for key, value := range tt.want {
				if got[key] != value {
					t.Fatalf("expected %s=%v, got %v", key, value, got[key])
				}
			}
		})
	}
}
