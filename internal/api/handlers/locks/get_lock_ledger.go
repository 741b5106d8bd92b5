package locks

import (
	"encoding/hex"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/api"
)

type lockLedgerResponse struct {
	ChainID   int64  `json:"chain_id"`
	Owner     string `json:"owner"`
	PublicKey string `json:"public_key"`
	Matches   bool   `json:"matches"` // on-chain public key equals the local one
}

// GetLockLedgerRoute reads the lock's on-chain record and compares it with
// the local identity. A mismatch means the local state drifted from the
// ledger, which is authoritative.
func GetLockLedgerRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Locks.GET("/:id/ledger", getLockLedgerHandler(s))
}

func getLockLedgerHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if s.Ledger == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no ledger connection")
		}

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
		if id.ChainID == 0 {
			return echo.NewHTTPError(http.StatusConflict, "lock has no ledger record yet")
		}

		values, err := s.Ledger.Call(ctx, "getLock", big.NewInt(id.ChainID))
		if err != nil {
			log.Error().Err(err).Int64("chain_id", id.ChainID).Msg("Failed to read lock from ledger")
			return echo.NewHTTPError(http.StatusBadGateway, "ledger read failed")
		}
		if len(values) != 2 {
			return echo.NewHTTPError(http.StatusBadGateway, "unexpected ledger response")
		}

		response := lockLedgerResponse{ChainID: id.ChainID}
		if owner, ok := values[0].(common.Address); ok {
			response.Owner = strings.ToLower(owner.Hex())
		}
		if publicKey, ok := values[1].([]byte); ok {
			response.PublicKey = "0x" + hex.EncodeToString(publicKey)
			response.Matches = strings.EqualFold(response.PublicKey, id.PublicKey)
		}

		return c.JSON(http.StatusOK, response)
	}
}
