package credentials

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/identity"
)

type postIssueCredentialRequest struct {
	LockLocalID int64      `json:"lock_local_id"`
	Recipient   recipient  `json:"recipient"`
	ValidUntil  *time.Time `json:"valid_until"`
}

type recipient struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// PostIssueCredentialRoute mints a credential for one of the device's locks.
// The lock must be active: the credential references the on-chain lock id.
func PostIssueCredentialRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.POST("", postIssueCredentialHandler(s))
}

func postIssueCredentialHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body postIssueCredentialRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if body.Recipient.Email == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "recipient email is required")
		}

		id, err := s.Identities.Get(ctx, body.LockLocalID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load lock")
		}
		if id == nil {
			return echo.NewHTTPError(http.StatusNotFound, "lock not found")
		}
		if id.Status != identity.StatusActive {
			return echo.NewHTTPError(http.StatusConflict, "lock is not registered on the ledger")
		}

		cred, err := s.Issuer.Issue(credential.IssueRequest{
			LockID:       id.ChainID,
			LockNickname: id.Name,
			RecipientMetadata: credential.RecipientMetadata{
				Email:       body.Recipient.Email,
				DisplayName: body.Recipient.DisplayName,
			},
			IssuerPrivateKey: id.PrivateKey,
			IssuerPublicKey:  id.PublicKey,
			ValidUntil:       body.ValidUntil,
		})
		if err != nil {
			log.Error().Err(err).Int64("local_id", body.LockLocalID).Msg("Failed to issue credential")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue credential")
		}

		if err := s.Credentials.PutIssued(ctx, *cred); err != nil {
			log.Error().Err(err).Str("credential_id", cred.ID).Msg("Failed to persist issued credential")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist credential")
		}

		return c.JSON(http.StatusCreated, toIssuedResponse(*cred, s.Credentials.IsExpired(cred.ValidUntil)))
	}
}
