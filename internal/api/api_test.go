package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchguard/go-lock-agent/internal/api"
	"github.com/latchguard/go-lock-agent/internal/api/router"
	"github.com/latchguard/go-lock-agent/internal/auth"
	"github.com/latchguard/go-lock-agent/internal/config"
	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/identity"
	"github.com/latchguard/go-lock-agent/internal/ledger"
	"github.com/latchguard/go-lock-agent/internal/registration"
	"github.com/latchguard/go-lock-agent/internal/revocation"
	"github.com/latchguard/go-lock-agent/internal/storage"
)

type stubSource struct {
	ch chan ledger.Confirmation
}

func (s *stubSource) Confirmations() <-chan ledger.Confirmation { return s.ch }
func (s *stubSource) Close() error                              { return nil }

func newTestServer(t *testing.T) *api.Server {
	t.Helper()

	cfg := config.DefaultServerConfigFromEnv()
	cfg.Auth.Secret = "test-pairing-secret"

	kv := storage.NewMemoryStore()
	s := api.NewServer(cfg)
	s.Tokens = auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, time.Hour)
	s.Identities = identity.NewStore(kv)
	s.Credentials = credential.NewStore(kv)
	s.Issuer = credential.NewIssuer()
	s.Registration = registration.NewCoordinator(s.Identities, nil, &stubSource{ch: make(chan ledger.Confirmation)})
	s.Revocation = revocation.NewCoordinator(s.Credentials, nil)

	router.Init(s)
	require.True(t, s.Ready())
	return s
}

func doRequest(s *api.Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func pair(t *testing.T, s *api.Server) string {
	t.Helper()
	rec := doRequest(s, http.MethodPost, "/api/v1/auth/token", "", map[string]interface{}{
		"device_id":      "device-1",
		"pairing_secret": "test-pairing-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestPairRejectsWrongSecret(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/v1/auth/token", "", map[string]interface{}{
		"device_id":      "device-1",
		"pairing_secret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLocksRequireToken(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/locks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLockLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := pair(t, s)

	rec := doRequest(s, http.MethodPost, "/api/v1/locks", token, map[string]interface{}{
		"name":     "Front door",
		"location": "Entrance",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		LocalID   int64  `json:"local_id"`
		PublicKey string `json:"public_key"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pending", created.Status)
	assert.NotEmpty(t, created.PublicKey)

	// Response never carries the private key
	assert.NotContains(t, rec.Body.String(), "private_key")

	rec = doRequest(s, http.MethodGet, "/api/v1/locks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doRequest(s, http.MethodGet, "/api/v1/locks/1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/locks/99", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// No ledger connection: registration is rejected but the lock survives
	rec = doRequest(s, http.MethodPost, "/api/v1/locks/1/register", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/locks/1/ledger", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/v1/locks/1", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/v1/locks/1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueRequiresActiveLock(t *testing.T) {
	s := newTestServer(t)
	token := pair(t, s)

	rec := doRequest(s, http.MethodPost, "/api/v1/locks", token, map[string]interface{}{"name": "Door"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/credentials", token, map[string]interface{}{
		"lock_local_id": 1,
		"recipient":     map[string]string{"email": "guest@example.com"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIssueAndListCredentials(t *testing.T) {
	s := newTestServer(t)
	token := pair(t, s)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	rec := doRequest(s, http.MethodPost, "/api/v1/locks", token, map[string]interface{}{"name": "Door"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Walk the identity through confirmation the way the coordinator would
	syncing, active := identity.StatusSyncing, identity.StatusActive
	chainID := int64(42)
	_, err := s.Identities.UpdateByLocalID(ctx, 1, identity.Update{Status: &syncing})
	require.NoError(t, err)
	_, err = s.Identities.UpdateByLocalID(ctx, 1, identity.Update{Status: &active, ChainID: &chainID})
	require.NoError(t, err)

	rec = doRequest(s, http.MethodPost, "/api/v1/credentials", token, map[string]interface{}{
		"lock_local_id": 1,
		"recipient":     map[string]string{"email": "guest@example.com", "display_name": "Guest"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued struct {
		ID     string `json:"id"`
		LockID int64  `json:"lock_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.Equal(t, int64(42), issued.LockID)

	rec = doRequest(s, http.MethodGet, "/api/v1/credentials?type=issued&lock_id=42", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var creds []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
	assert.Len(t, creds, 1)

	// Revocation without a ledger connection keeps the record
	rec = doRequest(s, http.MethodPost, "/api/v1/credentials/"+issued.ID+"/revoke", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestTransferOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := pair(t, s)

	envelope := map[string]interface{}{
		"credential": map[string]interface{}{
			"id":                  "cred-1",
			"lock_id":             7,
			"signature":           "0xsig",
			"signed_payload_hash": "0xhash",
			"valid_from":          time.Now().Format(time.RFC3339),
		},
		"transfer_expires_at": time.Now().Add(10 * time.Minute).Format(time.RFC3339),
	}
	rec := doRequest(s, http.MethodPost, "/api/v1/credentials/transfers", token, envelope)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/credentials?type=access", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var creds []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
	assert.Len(t, creds, 1)

	// Stale envelope
	envelope["transfer_expires_at"] = time.Now().Add(-time.Minute).Format(time.RFC3339)
	rec = doRequest(s, http.MethodPost, "/api/v1/credentials/transfers", token, envelope)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/-/healthy", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
