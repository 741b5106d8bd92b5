package locks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/identity"
	"github.com/latchguard/go-lock-agent/internal/registration"
)

// PostRegisterLockRoute submits (or retries) the on-chain registration of a
// lock. The call returns as soon as the transaction is accepted; confirmation
// lands asynchronously and flips the status, observable via GET.
func PostRegisterLockRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Locks.POST("/:id/register", postRegisterLockHandler(s))
}

func postRegisterLockHandler(s *api.Server) echo.HandlerFunc {
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
		if id.Status == identity.StatusActive {
			return echo.NewHTTPError(http.StatusConflict, "lock is already registered")
		}

		err = s.Registration.RegisterOrRetry(ctx, id, registration.Callbacks{})
		switch {
		case errors.Is(err, registration.ErrNotConnected):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no ledger connection")
		case errors.Is(err, registration.ErrSubmissionFailed):
			return echo.NewHTTPError(http.StatusBadGateway, "registration submission failed")
		case err != nil:
			log.Error().Err(err).Int64("local_id", localID).Msg("Failed to register lock")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to register lock")
		}

		updated, err := s.Identities.Get(ctx, localID)
		if err != nil || updated == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load lock")
		}
		return c.JSON(http.StatusAccepted, toLockResponse(updated))
	}
}
