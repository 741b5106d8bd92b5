package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/api/handlers/credentials"
	"github.com/latchguard/go-lock-agent/internal/api/handlers/locks"
	"github.com/latchguard/go-lock-agent/internal/api/handlers/tokens"
)

// AttachAllRoutes registers every route on the server's router.
func AttachAllRoutes(s *api.Server) []*echo.Route {
	return []*echo.Route{
		tokens.PostPairRoute(s),

		locks.PostCreateLockRoute(s),
		locks.GetListLocksRoute(s),
		locks.GetLockRoute(s),
		locks.GetLockLedgerRoute(s),
		locks.DeleteLockRoute(s),
		locks.PostRegisterLockRoute(s),

		credentials.PostIssueCredentialRoute(s),
		credentials.GetListCredentialsRoute(s),
		credentials.DeleteCredentialRoute(s),
		credentials.PostRevokeCredentialRoute(s),
		credentials.PostRevokeBatchRoute(s),
		credentials.PostTransferCredentialRoute(s),
		credentials.PostIngestTransferRoute(s),
	}
}
