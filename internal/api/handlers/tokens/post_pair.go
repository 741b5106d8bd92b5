package tokens

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/auth"
)

type postPairRequest struct {
	DeviceID      string   `json:"device_id"`
	PairingSecret string   `json:"pairing_secret"`
	Scopes        []string `json:"scopes"`
}

type postPairResponse struct {
	Token string `json:"token"`
}

// PostPairRoute pairs a client app with the agent. The caller proves
// possession of the configured pairing secret and receives a scoped bearer
// token for the rest of the API.
func PostPairRoute(s *api.Server) *echo.Route {
	return s.Router.Root.POST("/api/v1/auth/token", postPairHandler(s))
}

func postPairHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body postPairRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if body.DeviceID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "device_id is required")
		}
		if subtle.ConstantTimeCompare([]byte(body.PairingSecret), []byte(s.Config.Auth.Secret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid pairing secret")
		}

		scopes := body.Scopes
		if len(scopes) == 0 {
			scopes = []string{auth.ScopeLocks, auth.ScopeCredentials}
		}

		token, err := s.Tokens.Generate(body.DeviceID, scopes)
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate device token")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
		}

		log.Info().Str("device_id", body.DeviceID).Strs("scopes", scopes).Msg("Paired device")
		return c.JSON(http.StatusOK, postPairResponse{Token: token})
	}
}
