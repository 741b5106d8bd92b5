package locks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/identity"
)

func DeleteLockRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Locks.DELETE("/:id", deleteLockHandler(s))
}

func deleteLockHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		localID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lock id")
		}

		if err := s.Identities.Delete(ctx, localID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "lock not found")
			}
			log.Error().Err(err).Int64("local_id", localID).Msg("Failed to delete lock identity")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete lock")
		}

		return c.NoContent(http.StatusNoContent)
	}
}
