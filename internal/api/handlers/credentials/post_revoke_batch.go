package credentials

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/revocation"
)

type postRevokeBatchRequest struct {
	LockID        int64    `json:"lock_id"`
	CredentialIDs []string `json:"credential_ids"`
}

// PostRevokeBatchRoute revokes several credentials of one lock in a single
// ledger transaction.
func PostRevokeBatchRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.POST("/revoke-batch", postRevokeBatchHandler(s))
}

func postRevokeBatchHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body postRevokeBatchRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if len(body.CredentialIDs) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "credential_ids is required")
		}

		key, address, err := issuerKeyForLock(ctx, s, body.LockID)
		if err != nil {
			return err
		}

		err = s.Revocation.RevokeMany(ctx, body.LockID, body.CredentialIDs, key, address)
		switch {
		case errors.Is(err, credential.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "credential not found")
		case errors.Is(err, revocation.ErrNotConnected):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no ledger connection")
		case errors.Is(err, revocation.ErrSubmissionFailed):
			return echo.NewHTTPError(http.StatusBadGateway, "revocation submission failed")
		case err != nil:
			log.Error().Err(err).Int64("lock_id", body.LockID).Msg("Failed to revoke credential batch")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke credentials")
		}

		return c.NoContent(http.StatusNoContent)
	}
}
