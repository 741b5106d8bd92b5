package credentials

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/pkg/transfer"
)

type postTransferCredentialRequest struct {
	RecipientPublicKey string `json:"recipient_public_key"`
	TTLSeconds         int64  `json:"ttl_seconds"`
}

type postTransferCredentialResponse struct {
	SealedEnvelope    string    `json:"sealed_envelope"`
	TransferExpiresAt time.Time `json:"transfer_expires_at"`
}

const defaultTransferTTL = 10 * time.Minute

// PostTransferCredentialRoute seals an issued credential into an encrypted
// transfer envelope for a recipient device. The envelope carries the
// hash-only access view, never the recipient's plaintext metadata, and its
// own short expiry independent of the credential validity.
func PostTransferCredentialRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.POST("/:id/transfer", postTransferCredentialHandler(s))
}

func postTransferCredentialHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		var body postTransferCredentialRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if body.RecipientPublicKey == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "recipient_public_key is required")
		}

		cred, err := s.Credentials.GetIssued(ctx, id)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "credential not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load credential")
		}

		ttl := defaultTransferTTL
		if body.TTLSeconds > 0 {
			ttl = time.Duration(body.TTLSeconds) * time.Second
		}

		envelope := credential.TransferEnvelope{
			Credential:        cred.AccessView(),
			TransferExpiresAt: time.Now().Add(ttl),
		}

		sealed, err := transfer.SealEnvelope(envelope, body.RecipientPublicKey)
		if err != nil {
			log.Error().Err(err).Str("credential_id", id).Msg("Failed to seal transfer envelope")
			return echo.NewHTTPError(http.StatusBadRequest, "failed to seal envelope for recipient key")
		}

		return c.JSON(http.StatusOK, postTransferCredentialResponse{
			SealedEnvelope:    sealed,
			TransferExpiresAt: envelope.TransferExpiresAt,
		})
	}
}
