package locks

import (
	"time"

	"github.com/latchguard/go-lock-agent/internal/identity"
)

// lockResponse is the API view of a lock identity. The private key stays on
// the device.
type lockResponse struct {
	LocalID     int64  `json:"local_id"`
	ChainID     int64  `json:"chain_id,omitempty"`
	PublicKey   string `json:"public_key"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toLockResponse(id *identity.LockIdentity) lockResponse {
	return lockResponse{
		LocalID:     id.LocalID,
		ChainID:     id.ChainID,
		PublicKey:   id.PublicKey,
		Name:        id.Name,
		Description: id.Description,
		Location:    id.Location,
		Status:      string(id.Status),
		CreatedAt:   id.CreatedAt.Format(time.RFC3339),
	}
}
