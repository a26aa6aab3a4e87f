package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-academic-portal/internal/model"
	"go-academic-portal/pkg/apierror"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, WithTimeout(2*time.Second)), &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSuccessOriginalShape(t *testing.T) {
	t.Parallel()

	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, loginPath, r.URL.Path)

		var body model.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@uni.edu", body.Email)
		assert.Equal(t, "secret", body.Password)

		writeJSON(w, http.StatusOK, map[string]any{
			"token":           "access-1",
			"refreshToken":    "refresh-1",
			"tokenDurationMs": 15000,
			"usuario": map[string]any{
				"id":        7,
				"email":     "ana@uni.edu",
				"nombres":   "Ana",
				"apellidos": "Ruiz",
				"roles": []any{
					map[string]any{"id": 2, "nombre": "docente"},
					map[string]any{"id": 3, "nombre": "Estudiante"},
				},
			},
		})
	})

	result, err := client.Login(context.Background(), " ana@uni.edu ", "secret")
	require.NoError(t, err)

	assert.Equal(t, "access-1", result.AccessToken)
	assert.Equal(t, "refresh-1", result.RefreshToken)
	assert.Equal(t, 15*time.Second, result.Duration)
	assert.Equal(t, "7", result.User.ID)
	assert.Equal(t, "Ana Ruiz", result.User.FullName())
	assert.Equal(t, []model.Role{{ID: "2", Name: "docente"}, {ID: "3", Name: "Estudiante"}}, result.User.Roles)
}

func TestLoginSuccessWithoutDuration(t *testing.T) {
	t.Parallel()

	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "access-1",
			"user":        map[string]any{"id": "u1", "roles": []string{"admin"}},
		})
	})

	result, err := client.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Zero(t, result.Duration)
	assert.Empty(t, result.RefreshToken)
	assert.Equal(t, []model.Role{{ID: "admin", Name: "admin"}}, result.User.Roles)
}

func TestLoginErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    any
		kind    error
		message string
	}{
		{"unauthorized carries message", http.StatusUnauthorized, map[string]string{"message": "Credenciales incorrectas"}, model.ErrInvalidCredentials, "Credenciales incorrectas"},
		{"nested error message", http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "bad"}}, model.ErrInvalidCredentials, "bad"},
		{"server error", http.StatusInternalServerError, map[string]string{"message": "boom"}, model.ErrNetwork, "boom"},
		{"throttled", http.StatusTooManyRequests, map[string]string{"code": "RATE_LIMITED", "message": "Too many requests"}, model.ErrNetwork, "Too many requests"},
		{"request timeout", http.StatusRequestTimeout, map[string]string{"message": "slow"}, model.ErrNetwork, "slow"},
		{"success without token", http.StatusOK, map[string]string{"refreshToken": "r"}, model.ErrNetwork, ""},
		{"success without user", http.StatusOK, map[string]any{"token": "abc", "tokenDurationMs": 15000}, model.ErrNetwork, "login response has no user"},
		{"user without roles", http.StatusOK, map[string]any{"token": "abc", "usuario": map[string]any{"id": 1, "email": "a@b.co", "roles": []any{}}}, model.ErrNetwork, "login response user has no roles"},
		{"user with only blank roles", http.StatusOK, map[string]any{"token": "abc", "usuario": map[string]any{"id": 1, "roles": []any{map[string]any{"id": 1, "nombre": " "}}}}, model.ErrNetwork, "login response user has no roles"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			_, err := client.Login(context.Background(), "a@b.co", "pw")
			require.ErrorIs(t, err, tc.kind)

			var apiErr *apierror.APIError
			require.ErrorAs(t, err, &apiErr)
			if tc.message != "" {
				assert.Equal(t, tc.message, apiErr.Message)
			}
		})
	}
}

func TestLoginMalformedBody(t *testing.T) {
	t.Parallel()

	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := client.Login(context.Background(), "a@b.co", "pw")
	require.ErrorIs(t, err, model.ErrNetwork)
}

func TestLoginValidationSkipsNetwork(t *testing.T) {
	t.Parallel()

	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	for _, in := range [][2]string{{"", "pw"}, {"not-an-email", "pw"}, {"a@b.co", ""}} {
		_, err := client.Login(context.Background(), in[0], in[1])
		require.ErrorIs(t, err, model.ErrInvalidCredentials, "input %q", in)
	}
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := New(srv.URL, WithTimeout(time.Second))

	_, err := client.Login(context.Background(), "a@b.co", "pw")
	require.ErrorIs(t, err, model.ErrNetwork)

	_, err = client.VerifyToken(context.Background(), "t")
	require.ErrorIs(t, err, model.ErrNetwork)

	_, err = client.RefreshToken(context.Background(), "r")
	require.ErrorIs(t, err, model.ErrNetwork)
}

func TestVerifyTokenShapes(t *testing.T) {
	t.Parallel()

	bodies := map[string]any{
		"usuario": map[string]any{"usuario": map[string]any{"id": 1, "email": "x@y.z", "roles": []any{map[string]any{"id": 1, "nombre": "administrador"}}}},
		"user":    map[string]any{"valid": true, "user": map[string]any{"id": "1", "email": "x@y.z", "roles": []any{map[string]any{"id": "1", "name": "administrador"}}}},
		"bare":    map[string]any{"id": 1, "email": "x@y.z", "roles": []string{"administrador"}},
	}

	for name, body := range bodies {
		name, body := name, body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, body)
			})

			user, err := client.VerifyToken(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, "1", user.ID)
			require.Len(t, user.Roles, 1)
			assert.Equal(t, "administrador", user.Roles[0].Name)
		})
	}
}

func TestVerifyTokenRejected(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, map[string]string{"message": "nope"})
		})

		_, err := client.VerifyToken(context.Background(), "tok")
		require.ErrorIs(t, err, model.ErrTokenInvalid, "status %d", status)
	}
}

func TestVerifyTokenWithoutRoles(t *testing.T) {
	t.Parallel()

	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"valid": true, "usuario": map[string]any{"id": 1, "email": "x@y.z", "roles": []any{}}})
	})

	_, err := client.VerifyToken(context.Background(), "tok")
	require.ErrorIs(t, err, model.ErrNetwork)
}

func TestWithTimeoutLeavesSharedClientAlone(t *testing.T) {
	t.Parallel()

	shared := &http.Client{Timeout: time.Minute}
	client := New("http://localhost", WithHTTPClient(shared), WithTimeout(2*time.Second))

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, 2*time.Second, client.http.Timeout)
	assert.NotSame(t, shared, client.http)
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body model.RefreshRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body.RefreshToken)

		writeJSON(w, http.StatusOK, map[string]any{
			"token":           "access-2",
			"refreshToken":    "refresh-2",
			"tokenDurationMs": 30000,
		})
	})

	result, err := client.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, model.RefreshResult{AccessToken: "access-2", RefreshToken: "refresh-2", Duration: 30 * time.Second}, result)
}

func TestRefreshTokenErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusBadRequest, model.ErrRefreshInvalid},
		{http.StatusUnauthorized, model.ErrRefreshInvalid},
		{http.StatusForbidden, model.ErrRefreshInvalid},
		{http.StatusNotFound, model.ErrNetwork},
		{http.StatusTooManyRequests, model.ErrNetwork},
		{http.StatusServiceUnavailable, model.ErrNetwork},
	}

	for _, tc := range cases {
		client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, map[string]string{"message": "x"})
		})

		_, err := client.RefreshToken(context.Background(), "refresh-1")
		require.ErrorIs(t, err, tc.kind, "status %d", tc.status)
	}
}

func TestRefreshWithoutTokenSkipsNetwork(t *testing.T) {
	t.Parallel()

	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	_, err := client.RefreshToken(context.Background(), "  ")
	require.ErrorIs(t, err, model.ErrRefreshInvalid)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestAPIKeyHeader(t *testing.T) {
	t.Parallel()

	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get(apiKeyHeader))
		writeJSON(w, http.StatusOK, map[string]any{"token": "a", "usuario": map[string]any{"id": 1, "roles": []string{"docente"}}})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL+"/", WithAPIKey(" k-123 "))
	_, err := client.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "k-123", got.Load())
}

func TestNormalizeUserDropsDuplicateAndEmptyRoles(t *testing.T) {
	t.Parallel()

	var w wireUser
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "9",
		"names": "Luis",
		"roles": ["docente", {"id": 4, "nombre": "DOCENTE"}, {"id": 5, "nombre": ""}, {"id": "6", "name": "estudiante"}]
	}`), &w))

	user := normalizeUser(w)
	assert.Equal(t, []model.Role{{ID: "docente", Name: "docente"}, {ID: "6", Name: "estudiante"}}, user.Roles)
	assert.Equal(t, "Luis", user.FullName())
}
