package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querytool-macros/server/internal/config"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(userID))
	})
}

func TestDevUserAndRequireUser(t *testing.T) {
	handler := DevUser("alice")(RequireUser(echoUser()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/macros", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestDevUserDefault(t *testing.T) {
	rec := httptest.NewRecorder()
	DevUser("")(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "dev-user", rec.Body.String())
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireUser(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/macros", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication required")
}

func TestParseSessionKey(t *testing.T) {
	random, err := parseSessionKey("")
	require.NoError(t, err)
	assert.Len(t, random, 32)

	raw := strings.Repeat("k-", 20)
	key, err := parseSessionKey(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte(raw), key)

	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 32)))
	key, err = parseSessionKey(encoded)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = parseSessionKey("short")
	assert.Error(t, err)
}

func TestDeriveCookieKeysDiffer(t *testing.T) {
	hashKey, blockKey := deriveCookieKeys([]byte(strings.Repeat("m", 32)))
	assert.Len(t, hashKey, 32)
	assert.Len(t, blockKey, 32)
	assert.NotEqual(t, hashKey, blockKey)
}

func TestNewManagerRequiresOIDC(t *testing.T) {
	_, err := NewManager(config.AuthConfig{})
	assert.Error(t, err)
}
