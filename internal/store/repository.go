/**
 * @description
 * This file defines the `RecipientStore` interface, the persistence contract the
 * eligibility resolver relies on. Records are keyed by the (contact_hash, hint_hash)
 * pair; this service never derives either hash itself.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
)

// RecipientStore defines the methods for reading and writing recipient onboarding state.
type RecipientStore interface {
	// GetRecipientByHashes returns ErrRecipientNotFound when no record exists.
	GetRecipientByHashes(ctx context.Context, contactHash, hintHash string) (*domain.RecipientRecord, error)
	// UpsertRecipient inserts or replaces the record for its (contact_hash, hint_hash) key.
	UpsertRecipient(ctx context.Context, record domain.RecipientRecord) error
}
