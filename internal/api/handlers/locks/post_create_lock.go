package locks

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/identity"
)

type postCreateLockRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func PostCreateLockRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Locks.POST("", postCreateLockHandler(s))
}

func postCreateLockHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body postCreateLockRequest
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if body.Name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "name is required")
		}

		id, err := s.Identities.Create(ctx, identity.CreateRequest{
			Name:        body.Name,
			Description: body.Description,
			Location:    body.Location,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create lock identity")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to create lock")
		}

		return c.JSON(http.StatusCreated, toLockResponse(id))
	}
}
