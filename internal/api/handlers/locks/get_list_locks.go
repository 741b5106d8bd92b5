package locks

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
)

func GetListLocksRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Locks.GET("", getListLocksHandler(s))
}

func getListLocksHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		identities, err := s.Identities.List(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list lock identities")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list locks")
		}

		response := make([]lockResponse, len(identities))
		for i := range identities {
			response[i] = toLockResponse(&identities[i])
		}
		return c.JSON(http.StatusOK, response)
	}
}
