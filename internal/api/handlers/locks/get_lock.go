package locks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/latchguard/go-lock-agent/internal/api"
)

func GetLockRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Locks.GET("/:id", getLockHandler(s))
}

func getLockHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		localID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lock id")
		}

		id, err := s.Identities.Get(ctx, localID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load lock")
		}
		if id == nil {
			return echo.NewHTTPError(http.StatusNotFound, "lock not found")
		}

		return c.JSON(http.StatusOK, toLockResponse(id))
	}
}
