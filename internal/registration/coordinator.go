package registration

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/identity"
	"github.com/latchguard/go-lock-agent/internal/ledger"
	"github.com/latchguard/go-lock-agent/internal/metrics"
)

// DefaultTimeout is the authoritative registration confirmation window. One
// constant governs the timer, the API and the docs; there is deliberately no
// second value anywhere.
const DefaultTimeout = 2 * time.Minute

var (
	ErrNotConnected        = errors.New("no ledger write capability connected")
	ErrConfirmationTimeout = errors.New("registration confirmation timed out")
	ErrSubmissionFailed    = errors.New("registration submission failed")
)

// IdentityStore is the slice of the identity store the coordinator mutates
// through. The coordinator never writes identity records directly.
type IdentityStore interface {
	GetByPublicKey(ctx context.Context, publicKey string) (*identity.LockIdentity, error)
	UpdateByPublicKey(ctx context.Context, publicKey string, update identity.Update) (*identity.LockIdentity, error)
}

// Callbacks deliver the asynchronous outcome of a registration attempt.
// Exactly one of OnConfirmed / OnFailed fires per attempt.
type Callbacks struct {
	OnConfirmed func(conf ledger.Confirmation)
	OnFailed    func(err error)
}

type pendingRegistration struct {
	publicKey string
	createdAt time.Time
	timer     *time.Timer
	callbacks Callbacks
}

// Coordinator correlates locally-created identities with their on-chain
// confirmations. It owns the pending map exclusively; timer callbacks and the
// confirmation consumer both synchronize on its mutex, and a pending entry is
// removed under the lock before any callback fires, which is what makes
// resolution exactly-once.
type Coordinator struct {
	identities IdentityStore
	writer     ledger.Writer
	source     ledger.ConfirmationSource
	timeout    time.Duration
	metrics    metrics.Registration
	watchTx    func(ledger.TxHandle)

	mu      sync.Mutex
	pending map[string]*pendingRegistration

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithTimeout overrides the confirmation window.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithReceiptWatcher installs the hook that hands each submitted transaction
// to a receipt poller. Unused when confirmations arrive by event subscription;
// this is the only difference between the two transports.
func WithReceiptWatcher(watch func(ledger.TxHandle)) Option {
	return func(c *Coordinator) {
		c.watchTx = watch
	}
}

// NewCoordinator creates a coordinator. writer may be nil when no wallet is
// connected; RegisterOrRetry then fails with ErrNotConnected.
func NewCoordinator(identities IdentityStore, writer ledger.Writer, source ledger.ConfirmationSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		identities: identities,
		writer:     writer,
		source:     source,
		timeout:    DefaultTimeout,
		pending:    make(map[string]*pendingRegistration),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start consumes the confirmation stream until Close is called or the stream
// ends.
func (c *Coordinator) Start(ctx context.Context) {
	if c.source == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case conf, ok := <-c.source.Confirmations():
				if !ok {
					return
				}
				c.handleConfirmation(conf)
			}
		}
	}()
}

// RegisterOrRetry submits a registration transaction for the identity and
// opens a pending correlation keyed by its public key. Calling it again for
// the same key replaces the pending entry and cancels the prior timer, so
// retrying an in-flight registration never leaks a timer. Retries reuse the
// identity's existing key pair; the ledger must see the same public key to
// correlate past and future attempts.
func (c *Coordinator) RegisterOrRetry(ctx context.Context, id *identity.LockIdentity, callbacks Callbacks) error {
	if c.writer == nil {
		return ErrNotConnected
	}

	syncing := identity.StatusSyncing
	updated, err := c.identities.UpdateByPublicKey(ctx, id.PublicKey, identity.Update{Status: &syncing})
	if err != nil {
		return errors.Wrap(err, "failed to mark identity syncing")
	}
	if updated == nil {
		return identity.ErrNotFound
	}

	c.installPending(id.PublicKey, callbacks)

	publicKey, err := ledger.BytesFromHex(id.PublicKey)
	if err != nil {
		c.resolveFailed(ctx, id.PublicKey, errors.Wrap(err, "invalid identity public key"))
		return err
	}

	tx, err := c.writer.Submit(ctx, "registerLock", publicKey)
	if err != nil {
		log.Error().Err(err).Str("public_key", id.PublicKey).Msg("Registration submission rejected")
		c.metrics.ObserveSubmissionFailure()
		failure := errors.Wrapf(ErrSubmissionFailed, "submit registerLock: %v", err)
		c.resolveFailed(ctx, id.PublicKey, failure)
		return failure
	}

	if c.watchTx != nil {
		c.watchTx(tx)
	}

	log.Info().
		Str("public_key", id.PublicKey).
		Str("tx", string(tx)).
		Dur("timeout", c.timeout).
		Msg("Registration submitted, awaiting confirmation")

	return nil
}

// PendingCount reports the number of open correlations.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close cancels all outstanding timers and the confirmation source. Pending
// registrations are dropped without firing callbacks; the identities stay
// syncing in the store and remain retryable on the next start.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	for key, entry := range c.pending {
		entry.timer.Stop()
		delete(c.pending, key)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	var err error
	if c.source != nil {
		err = c.source.Close()
	}
	c.wg.Wait()
	return err
}

// installPending registers the correlation, replacing any prior entry for the
// same public key and cancelling its timer. At most one pending entry and one
// live timer exist per key at any instant.
func (c *Coordinator) installPending(publicKey string, callbacks Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.pending[publicKey]; ok {
		prior.timer.Stop()
		log.Debug().Str("public_key", publicKey).Msg("Replacing pending registration")
	}

	entry := &pendingRegistration{
		publicKey: publicKey,
		createdAt: time.Now(),
		callbacks: callbacks,
	}
	entry.timer = time.AfterFunc(c.timeout, func() {
		c.handleTimeout(publicKey)
	})
	c.pending[publicKey] = entry
}

// takePending removes and returns the entry for the key, stopping its timer.
func (c *Coordinator) takePending(publicKey string) (*pendingRegistration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pending[publicKey]
	if !ok {
		return nil, false
	}
	entry.timer.Stop()
	delete(c.pending, publicKey)
	return entry, true
}

func (c *Coordinator) handleConfirmation(conf ledger.Confirmation) {
	ctx := context.Background()

	entry, ok := c.takePending(conf.PublicKey)
	if !ok {
		// No open correlation: a different identity's confirmation, a
		// duplicate delivery, or a success arriving after the local timeout.
		c.acceptLateConfirmation(ctx, conf)
		return
	}

	active := identity.StatusActive
	updated, err := c.identities.UpdateByPublicKey(ctx, conf.PublicKey, identity.Update{
		ChainID: &conf.ChainID,
		Status:  &active,
	})
	if err != nil {
		log.Error().Err(err).Str("public_key", conf.PublicKey).Msg("Failed to activate confirmed identity")
		if entry.callbacks.OnFailed != nil {
			entry.callbacks.OnFailed(err)
		}
		return
	}
	if updated == nil {
		// Identity deleted while the registration was in flight; nothing to
		// activate, but the correlation is resolved.
		log.Warn().Str("public_key", conf.PublicKey).Msg("Confirmation arrived for deleted identity")
		return
	}

	c.metrics.ObserveConfirmed(time.Since(entry.createdAt))
	log.Info().
		Str("public_key", conf.PublicKey).
		Int64("chain_id", conf.ChainID).
		Str("owner", conf.Owner).
		Msg("Registration confirmed")

	if entry.callbacks.OnConfirmed != nil {
		entry.callbacks.OnConfirmed(conf)
	}
}

// acceptLateConfirmation applies a confirmation that has no open correlation.
// The ledger is authoritative: an identity the local timeout already marked
// failed still becomes active. Confirmations for identities that are already
// active (duplicate deliveries) and for unknown keys are ignored.
func (c *Coordinator) acceptLateConfirmation(ctx context.Context, conf ledger.Confirmation) {
	id, err := c.identities.GetByPublicKey(ctx, conf.PublicKey)
	if err != nil {
		log.Error().Err(err).Str("public_key", conf.PublicKey).Msg("Failed to look up identity for unmatched confirmation")
		return
	}
	if id == nil || id.Status == identity.StatusActive {
		log.Debug().Str("public_key", conf.PublicKey).Msg("Ignoring unmatched registration confirmation")
		return
	}

	active := identity.StatusActive
	if _, err := c.identities.UpdateByPublicKey(ctx, conf.PublicKey, identity.Update{
		ChainID: &conf.ChainID,
		Status:  &active,
	}); err != nil {
		log.Error().Err(err).Str("public_key", conf.PublicKey).Msg("Failed to apply late confirmation")
		return
	}

	log.Info().
		Str("public_key", conf.PublicKey).
		Int64("chain_id", conf.ChainID).
		Msg("Accepted late registration confirmation")
}

func (c *Coordinator) handleTimeout(publicKey string) {
	entry, ok := c.takePending(publicKey)
	if !ok {
		// Confirmation or submission failure resolved the attempt first.
		return
	}

	ctx := context.Background()
	failed := identity.StatusFailed
	if _, err := c.identities.UpdateByPublicKey(ctx, publicKey, identity.Update{Status: &failed}); err != nil {
		log.Error().Err(err).Str("public_key", publicKey).Msg("Failed to mark timed-out identity failed")
	}

	c.metrics.ObserveTimeout()
	log.Warn().
		Str("public_key", publicKey).
		Dur("timeout", c.timeout).
		Msg("Registration confirmation window elapsed")

	if entry.callbacks.OnFailed != nil {
		entry.callbacks.OnFailed(ErrConfirmationTimeout)
	}
}

// resolveFailed clears the pending entry (if still present) and marks the
// identity failed. The attempt is terminal; the identity stays retryable.
func (c *Coordinator) resolveFailed(ctx context.Context, publicKey string, cause error) {
	entry, ok := c.takePending(publicKey)
	if !ok {
		return
	}

	failed := identity.StatusFailed
	if _, err := c.identities.UpdateByPublicKey(ctx, publicKey, identity.Update{Status: &failed}); err != nil {
		log.Error().Err(err).Str("public_key", publicKey).Msg("Failed to mark identity failed")
	}

	if entry.callbacks.OnFailed != nil {
		entry.callbacks.OnFailed(cause)
	}
}
