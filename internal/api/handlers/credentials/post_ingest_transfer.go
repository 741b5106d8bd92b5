package credentials

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/credential"
)

// PostIngestTransferRoute accepts an opened transfer envelope and stores the
// shared credential in the access ledger. The client opens the sealed
// envelope with its own key; the agent only sees the plain envelope.
func PostIngestTransferRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Credentials.POST("/transfers", postIngestTransferHandler(s))
}

func postIngestTransferHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var envelope credential.TransferEnvelope
		if err := c.Bind(&envelope); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if envelope.Credential.ID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "credential is required")
		}

		cred, err := s.Credentials.IngestTransfer(ctx, envelope)
		if err != nil {
			if errors.Is(err, credential.ErrTransferExpired) {
				return echo.NewHTTPError(http.StatusGone, "transfer envelope expired")
			}
			log.Error().Err(err).Str("credential_id", envelope.Credential.ID).Msg("Failed to ingest transfer")
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to ingest transfer")
		}

		return c.JSON(http.StatusCreated, toAccessResponse(*cred, s.Credentials.IsExpired(cred.ValidUntil)))
	}
}
