package credentials

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/crypto"
	"github.com/latchguard/go-lock-agent/internal/identity"
	"github.com/latchguard/go-lock-agent/internal/revocation"
)

// PostRevokeCredentialRoute revokes an issued credential on the ledger and
// removes the local record.
func PostRevokeCredentialRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.POST("/:id/revoke", postRevokeCredentialHandler(s))
}

func postRevokeCredentialHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		cred, err := s.Credentials.GetIssued(ctx, id)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "credential not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load credential")
		}

		key, address, err := issuerKeyForLock(ctx, s, cred.LockID)
		if err != nil {
			return err
		}

		err = s.Revocation.Revoke(ctx, id, key, address)
		switch {
		case errors.Is(err, credential.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "credential not found")
		case errors.Is(err, revocation.ErrNotConnected):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no ledger connection")
		case errors.Is(err, revocation.ErrSubmissionFailed):
			return echo.NewHTTPError(http.StatusBadGateway, "revocation submission failed")
		case err != nil:
			log.Error().Err(err).Str("credential_id", id).Msg("Failed to revoke credential")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke credential")
		}

		return c.NoContent(http.StatusNoContent)
	}
}

// issuerKeyForLock resolves the signing key of the lock that issued a
// credential. The credential stores the on-chain lock id; the identity store
// is scanned for the identity holding that chain id.
func issuerKeyForLock(ctx context.Context, s *api.Server, chainID int64) (string, string, error) {
	identities, err := s.Identities.List(ctx)
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusInternalServerError, "failed to load lock identities")
	}

	var owner *identity.LockIdentity
	for i := range identities {
		if identities[i].ChainID == chainID && identities[i].Status == identity.StatusActive {
			owner = &identities[i]
			break
		}
	}
	if owner == nil {
		return "", "", echo.NewHTTPError(http.StatusConflict, "issuing lock is not managed by this device")
	}

	address, err := crypto.AddressFromPublicKey(owner.PublicKey)
	if err != nil {
		log.Error().Err(err).Int64("chain_id", chainID).Msg("Failed to derive issuer address")
		return "", "", echo.NewHTTPError(http.StatusInternalServerError, "failed to derive issuer address")
	}
	return owner.PrivateKey, address, nil
}
