package app

import (
	"context"
	"sync"
	"time"

	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/domain"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/internal/store"
	"github.com/Deed3Labs/Protocol-Contracts-sub005/pkg/bridgeclient"
)

type bridgeStub struct {
	mu sync.Mutex

	findResult *bridgeclient.KYCLink
	findErr    error

	createResult *bridgeclient.KYCLink
	createErr    error

	tosURL string
	tosErr error
	kycURL string
	kycErr error

	accounts    []map[string]interface{}
	accountsErr error

	transferResult map[string]interface{}
	transferErr    error

	findCalls     int
	createCalls   int
	tosCalls      int
	kycCalls      int
	listCalls     int
	transferCalls int

	createRequest       bridgeclient.CreateKYCLinkRequest
	createIdempotency   string
	transferRequest     bridgeclient.TransferRequest
	transferIdempotency string
	transferPath        string
	transferTimeout     time.Duration
}

func (s *bridgeStub) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls + s.createCalls + s.tosCalls + s.kycCalls + s.listCalls + s.transferCalls
}

func (s *bridgeStub) FindKYCLinkByEmail(ctx context.Context, email string) (*bridgeclient.KYCLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	return s.findResult, s.findErr
}

func (s *bridgeStub) CreateKYCLink(ctx context.Context, req bridgeclient.CreateKYCLinkRequest, idempotencyKey string) (*bridgeclient.KYCLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	s.createRequest = req
	s.createIdempotency = idempotencyKey
	return s.createResult, s.createErr
}

func (s *bridgeStub) GetTOSLink(ctx context.Context, customerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tosCalls++
	return s.tosURL, s.tosErr
}

func (s *bridgeStub) GetKYCLink(ctx context.Context, customerID, redirectURI string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kycCalls++
	return s.kycURL, s.kycErr
}

func (s *bridgeStub) ListExternalAccounts(ctx context.Context, customerID string, limit int) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.accounts, s.accountsErr
}

func (s *bridgeStub) CreateTransfer(ctx context.Context, path string, req bridgeclient.TransferRequest, idempotencyKey string, timeout time.Duration) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferCalls++
	s.transferPath = path
	s.transferRequest = req
	s.transferIdempotency = idempotencyKey
	s.transferTimeout = timeout
	return s.transferResult, s.transferErr
}

type recipientStoreStub struct {
	store.RecipientStore

	record  *domain.RecipientRecord
	getErr  error
	upserts []domain.RecipientRecord
	putErr  error
}

func (s *recipientStoreStub) GetRecipientByHashes(ctx context.Context, contactHash, hintHash string) (*domain.RecipientRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.record == nil {
		return nil, store.ErrRecipientNotFound
	}
	copied := *s.record
	return &copied, nil
}

func (s *recipientStoreStub) UpsertRecipient(ctx context.Context, record domain.RecipientRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.upserts = append(s.upserts, record)
	copied := record
	s.record = &copied
	return nil
}

type publishedMessage struct {
	exchange   string
	routingKey string
	body       interface{}
}

type publisherStub struct {
	messages []publishedMessage
	err      error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) Close() {}
