package identity

import "time"

// Status is the lock identity lifecycle state.
type Status string

const (
	// StatusPending: created locally, registration not yet submitted.
	StatusPending Status = "pending"
	// StatusSyncing: registration submitted, awaiting ledger confirmation.
	StatusSyncing Status = "syncing"
	// StatusActive: confirmed on the ledger, chain id assigned.
	StatusActive Status = "active"
	// StatusFailed: submission error or confirmation timeout; retryable.
	StatusFailed Status = "failed"
)

// LockIdentity is a lock's local key pair plus its registration state.
// LocalID and ChainID are assigned by two systems that do not share a
// namespace; PublicKey is the sole correlation key between them.
type LockIdentity struct {
	LocalID     int64     `json:"local_id"`
	ChainID     int64     `json:"chain_id,omitempty"` // 0 until confirmed
	PublicKey   string    `json:"public_key"`
	PrivateKey  string    `json:"private_key"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateRequest carries the user-facing fields of a new identity.
type CreateRequest struct {
	Name        string
	Description string
	Location    string
}

// Update is a partial mutation applied through the store.
type Update struct {
	ChainID     *int64
	Status      *Status
	Name        *string
	Description *string
	Location    *string
}

// CanTransition reports whether a status change is allowed. The only path out
// of failed besides retry is a late ledger confirmation: the ledger is
// authoritative, the local timeout is a pacing decision.
func CanTransition(current, next Status) bool {
	switch current {
	case StatusPending:
		return next == StatusSyncing
	case StatusSyncing:
		// syncing -> syncing keeps retry idempotent
		return next == StatusSyncing || next == StatusActive || next == StatusFailed
	case StatusFailed:
		return next == StatusSyncing || next == StatusActive
	case StatusActive:
		return false
	default:
		return false
	}
}
