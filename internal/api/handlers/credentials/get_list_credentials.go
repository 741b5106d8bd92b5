package credentials

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
)

// GetListCredentialsRoute lists credentials from one of the two ledgers:
// type=issued (default) or type=access, optionally filtered by lock_id.
func GetListCredentialsRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.GET("", getListCredentialsHandler(s))
}

func getListCredentialsHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var lockID int64
		if raw := c.QueryParam("lock_id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid lock_id")
			}
			lockID = parsed
		}

		switch c.QueryParam("type") {
		case "access":
			creds, err := s.Credentials.ListAccess(ctx, lockID)
			if err != nil {
				log.Error().Err(err).Msg("Failed to list access credentials")
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to list credentials")
			}
			response := make([]accessCredentialResponse, len(creds))
			for i, cred := range creds {
				response[i] = toAccessResponse(cred, s.Credentials.IsExpired(cred.ValidUntil))
			}
			return c.JSON(http.StatusOK, response)
		case "", "issued":
			creds, err := s.Credentials.ListIssued(ctx, lockID)
			if err != nil {
				log.Error().Err(err).Msg("Failed to list issued credentials")
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to list credentials")
			}
			response := make([]issuedCredentialResponse, len(creds))
			for i, cred := range creds {
				response[i] = toIssuedResponse(cred, s.Credentials.IsExpired(cred.ValidUntil))
			}
			return c.JSON(http.StatusOK, response)
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "type must be issued or access")
		}
	}
}
