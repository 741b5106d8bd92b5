package credentials

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/credential"
)

// DeleteCredentialRoute removes a received credential from the access ledger.
// This is a local cleanup, not a revocation: only the issuer can revoke.
func DeleteCredentialRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.DELETE("/:id", deleteCredentialHandler(s))
}

func deleteCredentialHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.Param("id")

		if err := s.Credentials.DeleteAccess(ctx, id); err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "credential not found")
			}
			log.Error().Err(err).Str("credential_id", id).Msg("Failed to delete access credential")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete credential")
		}

		return c.NoContent(http.StatusNoContent)
	}
}
