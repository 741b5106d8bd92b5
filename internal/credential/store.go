package credential

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/storage"
)

const (
	issuedKey = "credentials:issued"
	accessKey = "credentials:access"
)

var (
	ErrNotFound        = errors.New("credential not found")
	ErrTransferExpired = errors.New("credential transfer envelope expired")
)

// Store keeps two independent credential ledgers: credentials this device
// issued (full metadata) and credentials it holds for access (hash-only).
// The collections live under separate KV keys and are never cross-written.
type Store struct {
	kv  storage.KVStore
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a credential store on top of the KV persistence layer.
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv, now: time.Now}
}

// PutIssued upserts an issued credential by id.
func (s *Store) PutIssued(ctx context.Context, cred IssuedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[IssuedCredential](ctx, s.kv, issuedKey)
	if err != nil {
		return err
	}
	creds = upsert(creds, cred, func(c IssuedCredential) string { return c.ID })
	return persistCollection(ctx, s.kv, issuedKey, creds)
}

// PutAccess upserts an access credential by id.
func (s *Store) PutAccess(ctx context.Context, cred AccessCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[AccessCredential](ctx, s.kv, accessKey)
	if err != nil {
		return err
	}
	creds = upsert(creds, cred, func(c AccessCredential) string { return c.ID })
	return persistCollection(ctx, s.kv, accessKey, creds)
}

// GetIssued returns the issued credential with the given id.
func (s *Store) GetIssued(ctx context.Context, id string) (*IssuedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[IssuedCredential](ctx, s.kv, issuedKey)
	if err != nil {
		return nil, err
	}
	for i := range creds {
		if creds[i].ID == id {
			cred := creds[i]
			return &cred, nil
		}
	}
	return nil, ErrNotFound
}

// ListIssued returns issued credentials, filtered by lock when lockID != 0.
func (s *Store) ListIssued(ctx context.Context, lockID int64) ([]IssuedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[IssuedCredential](ctx, s.kv, issuedKey)
	if err != nil {
		return nil, err
	}
	if lockID == 0 {
		return creds, nil
	}
	filtered := make([]IssuedCredential, 0, len(creds))
	for _, c := range creds {
		if c.LockID == lockID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// ListAccess returns access credentials, filtered by lock when lockID != 0.
func (s *Store) ListAccess(ctx context.Context, lockID int64) ([]AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[AccessCredential](ctx, s.kv, accessKey)
	if err != nil {
		return nil, err
	}
	if lockID == 0 {
		return creds, nil
	}
	filtered := make([]AccessCredential, 0, len(creds))
	for _, c := range creds {
		if c.LockID == lockID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// DeleteIssued removes an issued credential by id.
func (s *Store) DeleteIssued(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[IssuedCredential](ctx, s.kv, issuedKey)
	if err != nil {
		return err
	}
	for i := range creds {
		if creds[i].ID == id {
			creds = append(creds[:i], creds[i+1:]...)
			return persistCollection(ctx, s.kv, issuedKey, creds)
		}
	}
	return ErrNotFound
}

// DeleteAccess removes an access credential by id.
func (s *Store) DeleteAccess(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := loadCollection[AccessCredential](ctx, s.kv, accessKey)
	if err != nil {
		return err
	}
	for i := range creds {
		if creds[i].ID == id {
			creds = append(creds[:i], creds[i+1:]...)
			return persistCollection(ctx, s.kv, accessKey, creds)
		}
	}
	return ErrNotFound
}

// IsExpired reports whether a validity window has passed. A nil validUntil
// never expires.
func (s *Store) IsExpired(validUntil *time.Time) bool {
	if validUntil == nil {
		return false
	}
	return !s.now().Before(*validUntil)
}

// IngestTransfer accepts a shared credential from a transfer envelope. The
// envelope's own expiry is enforced first: a stale transfer fails even when
// the underlying credential is still valid.
func (s *Store) IngestTransfer(ctx context.Context, envelope TransferEnvelope) (*AccessCredential, error) {
	if s.now().After(envelope.TransferExpiresAt) {
		log.Warn().
			Str("credential_id", envelope.Credential.ID).
			Time("transfer_expires_at", envelope.TransferExpiresAt).
			Msg("Rejected stale credential transfer")
		return nil, ErrTransferExpired
	}

	cred := envelope.Credential
	if err := s.PutAccess(ctx, cred); err != nil {
		return nil, err
	}

	log.Info().
		Str("credential_id", cred.ID).
		Int64("lock_id", cred.LockID).
		Msg("Ingested shared credential")

	return &cred, nil
}

func upsert[T any](creds []T, cred T, id func(T) string) []T {
	for i := range creds {
		if id(creds[i]) == id(cred) {
			creds[i] = cred
			return creds
		}
	}
	return append(creds, cred)
}

func loadCollection[T any](ctx context.Context, kv storage.KVStore, key string) ([]T, error) {
	value, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load credentials")
	}
	var creds []T
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal credentials")
	}
	return creds, nil
}

func persistCollection[T any](ctx context.Context, kv storage.KVStore, key string, creds []T) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "failed to marshal credentials")
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return errors.Wrap(err, "failed to persist credentials")
	}
	return nil
}
