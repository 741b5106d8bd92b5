package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/crypto"
	"github.com/latchguard/go-lock-agent/internal/storage"
)

const identitiesKey = "identities"

var (
	ErrNotFound          = errors.New("identity not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the local registry of lock identities. It is the single writer of
// the persisted collection: every mutation rewrites the full set under one KV
// key, so no other component may write identity records.
type Store struct {
	kv  storage.KVStore
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates an identity store on top of the KV persistence layer.
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Create generates a fresh key pair, assigns the next local id and persists
// the identity with status pending. No ledger interaction happens here.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*LockIdentity, error) {
	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate lock key pair")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var maxID int64
	for _, id := range identities {
		if id.LocalID > maxID {
			maxID = id.LocalID
		}
	}

	identity := LockIdentity{
		LocalID:     maxID + 1,
		PublicKey:   keyPair.PublicKey,
		PrivateKey:  keyPair.PrivateKey,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}

	identities = append(identities, identity)
	if err := s.persist(ctx, identities); err != nil {
		return nil, err
	}

	log.Info().
		Int64("local_id", identity.LocalID).
		Str("public_key", identity.PublicKey).
		Msg("Created lock identity")

	return &identity, nil
}

// Get returns the identity with the given local id, or nil when missing.
func (s *Store) Get(ctx context.Context, localID int64) (*LockIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].LocalID == localID {
			id := identities[i]
			return &id, nil
		}
	}
	return nil, nil
}

// GetByPublicKey returns the identity with the given public key, or nil.
func (s *Store) GetByPublicKey(ctx context.Context, publicKey string) (*LockIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].PublicKey == publicKey {
			id := identities[i]
			return &id, nil
		}
	}
	return nil, nil
}

// UpdateByPublicKey applies a partial update to the identity correlated by
// public key. Confirmation events may race a local deletion, so a missing
// identity is logged and reported as nil, not an error.
func (s *Store) UpdateByPublicKey(ctx context.Context, publicKey string, update Update) (*LockIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].PublicKey == publicKey {
			return s.apply(ctx, identities, i, update)
		}
	}

	log.Warn().Str("public_key", publicKey).Msg("Update by public key matched no identity")
	return nil, nil
}

// UpdateByLocalID applies a partial update to the identity with the local id.
func (s *Store) UpdateByLocalID(ctx context.Context, localID int64, update Update) (*LockIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].LocalID == localID {
			return s.apply(ctx, identities, i, update)
		}
	}

	log.Warn().Int64("local_id", localID).Msg("Update by local id matched no identity")
	return nil, nil
}

// Delete removes the identity with the given local id.
func (s *Store) Delete(ctx context.Context, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range identities {
		if identities[i].LocalID == localID {
			identities = append(identities[:i], identities[i+1:]...)
			return s.persist(ctx, identities)
		}
	}
	return ErrNotFound
}

// List returns all identities.
func (s *Store) List(ctx context.Context) ([]LockIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) apply(ctx context.Context, identities []LockIdentity, i int, update Update) (*LockIdentity, error) {
	id := &identities[i]
	if update.Status != nil && *update.Status != id.Status {
		if !CanTransition(id.Status, *update.Status) {
			return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, id.Status, *update.Status)
		}
		id.Status = *update.Status
	}
	if update.ChainID != nil {
		id.ChainID = *update.ChainID
	}
	if update.Name != nil {
		id.Name = *update.Name
	}
	if update.Description != nil {
		id.Description = *update.Description
	}
	if update.Location != nil {
		id.Location = *update.Location
	}

	if err := s.persist(ctx, identities); err != nil {
		return nil, err
	}
	out := *id
	return &out, nil
}

func (s *Store) load(ctx context.Context) ([]LockIdentity, error) {
	value, err := s.kv.Get(ctx, identitiesKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load identities")
	}

	var identities []LockIdentity
	if err := json.Unmarshal([]byte(value), &identities); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal identities")
	}
	return identities, nil
}

func (s *Store) persist(ctx context.Context, identities []LockIdentity) error {
	data, err := json.Marshal(identities)
	if err != nil {
		return errors.Wrap(err, "failed to marshal identities")
	}
	if err := s.kv.Set(ctx, identitiesKey, string(data)); err != nil {
		return errors.Wrap(err, "failed to persist identities")
	}
	return nil
}
