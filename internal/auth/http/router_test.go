package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	httpapi "github.com/tavernworks/doorman/internal/auth/http"
	"github.com/tavernworks/doorman/internal/auth/service"
	"github.com/tavernworks/doorman/internal/auth/store/drivers/sqlite"
	"github.com/tavernworks/doorman/pkg/cryptox"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "doorman-http-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

// newTestServer wires a real router against a throwaway sqlite store and
// returns a client with a cookie jar so session cookies round-trip.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter("test", st, logger)
	router.AuthService = &service.AuthService{Store: st}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return srv, &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()

	var m map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func register(t *testing.T, client *http.Client, base, email, password string) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPost, base+"/v1/users",
		map[string]string{"email": email, "password": password})
}

func login(t *testing.T, client *http.Client, base, email, password string) *http.Response {
	t.Helper()
	return doJSON(t, client, http.MethodPost, base+"/v1/sessions",
		map[string]string{"email": email, "password": password})
}

func TestRegisterEndpoint(t *testing.T) {
	srv, client := newTestServer(t)

	resp := register(t, client, srv.URL, "a@x.com", "pw1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "a@x.com", body["email"])

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp := register(t, client, srv.URL, "a@x.com", "other")
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "already_registered", decodeBody(t, resp)["error"])
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPost, srv.URL+"/v1/users",
			map[string]string{"email": "b@x.com"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestLoginEndpoint(t *testing.T) {
	srv, client := newTestServer(t)

	resp := register(t, client, srv.URL, "a@x.com", "pw1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	t.Run("wrong password rejected", func(t *testing.T) {
		resp := login(t, client, srv.URL, "a@x.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("unknown email rejected identically", func(t *testing.T) {
		resp := login(t, client, srv.URL, "nobody@x.com", "pw1")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("valid login sets session cookie", func(t *testing.T) {
		resp := login(t, client, srv.URL, "a@x.com", "pw1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		var found bool
		for _, c := range resp.Cookies() {
			if c.Name == httpapi.SessionCookieName {
				found = true
				require.NotEmpty(t, c.Value)
			}
		}
		require.True(t, found, "login should set the session cookie")
	})
}

func TestProfileAndLogout(t *testing.T) {
	srv, client := newTestServer(t)

	register(t, client, srv.URL, "a@x.com", "pw1").Body.Close()

	t.Run("profile without session is forbidden", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/v1/profile")
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	login(t, client, srv.URL, "a@x.com", "pw1").Body.Close()

	t.Run("profile with session returns email", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/v1/profile")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "a@x.com", decodeBody(t, resp)["email"])
	})

	t.Run("logout destroys the session", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		// The session no longer resolves
		profileResp, err := client.Get(srv.URL + "/v1/profile")
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, profileResp.StatusCode)
		profileResp.Body.Close()

		// A second logout with no live session is forbidden, not a crash
		req, err = http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions", nil)
		require.NoError(t, err)
		resp, err = client.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestPasswordResetEndpoints(t *testing.T) {
	srv, client := newTestServer(t)

	register(t, client, srv.URL, "a@x.com", "old-password").Body.Close()

	t.Run("unknown email forbidden", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPost, srv.URL+"/v1/reset_password",
			map[string]string{"email": "nobody@x.com"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/v1/reset_password",
		map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decodeBody(t, resp)["reset_token"]
	require.NotEmpty(t, token)

	t.Run("redeem swaps the password", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, srv.URL+"/v1/reset_password",
			map[string]string{"reset_token": token, "new_password": "new-password"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		old := login(t, client, srv.URL, "a@x.com", "old-password")
		require.Equal(t, http.StatusUnauthorized, old.StatusCode)
		old.Body.Close()

		fresh := login(t, client, srv.URL, "a@x.com", "new-password")
		require.Equal(t, http.StatusOK, fresh.StatusCode)
		fresh.Body.Close()
	})

	t.Run("consumed token forbidden", func(t *testing.T) {
		resp := doJSON(t, client, http.MethodPut, srv.URL+"/v1/reset_password",
			map[string]string{"reset_token": token, "new_password": "sneaky"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHealthEndpoints(t *testing.T) {
	srv, client := newTestServer(t)

	resp, err := client.Get(srv.URL + "/livez")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decodeBody(t, resp)["status"])

	resp, err = client.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
