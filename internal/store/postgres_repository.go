/**
 * @description
 * This file provides the PostgreSQL implementation of the `RecipientStore` interface
 * over the `bridge_recipients` table.
 *
 * @dependencies
 * - context, errors, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * Expected schema:
 *
 *   CREATE TABLE bridge_recipients (
 *     contact_hash            TEXT NOT NULL,
 *     hint_hash               TEXT NOT NULL DEFAULT '',
 *     email                   TEXT,
 *     customer_id             TEXT,
 *     external_account_id     TEXT,
 *     external_account_method TEXT,
 *     status                  TEXT NOT NULL,
 *     onboarding_url          TEXT,
 *     kyc_url                 TEXT,
 *     tos_url                 TEXT,
 *     created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
 *     updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
 *     PRIMARY KEY (contact_hash, hint_hash)
 *   );
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInvalidRecipient  = errors.New("recipient record is missing its contact hash")
)

// PostgresRecipientStore is a concrete implementation of RecipientStore for PostgreSQL.
type PostgresRecipientStore struct {
	db *pgxpool.Pool
}

// NewPostgresRecipientStore creates a new instance of PostgresRecipientStore.
func NewPostgresRecipientStore(db *pgxpool.Pool) *PostgresRecipientStore {
	return &PostgresRecipientStore{db: db}
}

// GetRecipientByHashes fetches the record for the given hash pair.
func (r *PostgresRecipientStore) GetRecipientByHashes(ctx context.Context, contactHash, hintHash string) (*domain.RecipientRecord, error) {
	var (
		rec                           domain.RecipientRecord
		email, customerID, accountID  *string
		accountMethod, status         *string
		onboardingURL, kycURL, tosURL *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT contact_hash, hint_hash, email, customer_id, external_account_id,
		       external_account_method, status, onboarding_url, kyc_url, tos_url,
		       created_at, updated_at
		FROM bridge_recipients
		WHERE contact_hash = $1 AND hint_hash = $2
	`, contactHash, normalizeHintHash(hintHash)).Scan(
		&rec.ContactHash, &rec.HintHash, &email, &customerID, &accountID,
		&accountMethod, &status, &onboardingURL, &kycURL, &tosURL,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("query recipient: %w", err)
	}

	rec.Email = derefString(email)
	rec.CustomerID = derefString(customerID)
	rec.ExternalAccountID = derefString(accountID)
	rec.ExternalAccountMethod = domain.PayoutMethod(derefString(accountMethod))
	rec.Status = domain.RecipientStatus(derefString(status))
	rec.OnboardingURL = derefString(onboardingURL)
	rec.KYCURL = derefString(kycURL)
	rec.TOSURL = derefString(tosURL)
	return &rec, nil
}

// UpsertRecipient inserts the record or replaces the mutable columns of an existing one.
// created_at is preserved across updates.
func (r *PostgresRecipientStore) UpsertRecipient(ctx context.Context, record domain.RecipientRecord) error {
	if strings.TrimSpace(record.ContactHash) == "" {
		return ErrInvalidRecipient
	}
	now := time.Now().UTC()
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO bridge_recipients (
			contact_hash, hint_hash, email, customer_id, external_account_id,
			external_account_method, status, onboarding_url, kyc_url, tos_url,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (contact_hash, hint_hash) DO UPDATE SET
			email = EXCLUDED.email,
			customer_id = EXCLUDED.customer_id,
			external_account_id = EXCLUDED.external_account_id,
			external_account_method = EXCLUDED.external_account_method,
			status = EXCLUDED.status,
			onboarding_url = EXCLUDED.onboarding_url,
			kyc_url = EXCLUDED.kyc_url,
			tos_url = EXCLUDED.tos_url,
			updated_at = EXCLUDED.updated_at
	`,
		record.ContactHash,
		normalizeHintHash(record.HintHash),
		optionalString(record.Email),
		optionalString(record.CustomerID),
		optionalString(record.ExternalAccountID),
		optionalString(string(record.ExternalAccountMethod)),
		string(record.Status),
		optionalString(record.OnboardingURL),
		optionalString(record.KYCURL),
		optionalString(record.TOSURL),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}
	return nil
}

// normalizeHintHash keeps the primary key total: an absent hint is stored as ''.
func normalizeHintHash(hintHash string) string {
	return strings.TrimSpace(hintHash)
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
