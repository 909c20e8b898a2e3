package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stylesync/internal/identity"
)

func jsonError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": false, "error": msg}
	if code != "" {
		body["error_code"] = code
	}
	json.NewEncoder(w).Encode(body)
}

func jsonOK(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	payload["success"] = true
	json.NewEncoder(w).Encode(payload)
}

func TestClassifyErrorCodes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		want   ErrorKind
	}{
		{"token expired", 401, "TOKEN_EXPIRED", KindAuthExpired},
		{"token invalid", 401, "TOKEN_INVALID", KindAuthInvalid},
		{"db connection", 500, "DB_CONNECTION_ERROR", KindServerUnavailable},
		{"db query", 500, "DB_QUERY_ERROR", KindServerUnavailable},
		{"db timeout", 500, "TIMEOUT", KindTimeout},
		{"bare 401", 401, "", KindAuthInvalid},
		{"bare 404", 404, "", KindNotFound},
		{"bare 409", 409, "", KindConflict},
		{"bare 503", 503, "", KindServerUnavailable},
		{"unrecognized", 400, "SOMETHING_ELSE", KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.status, tc.code, "boom")
			require.Equal(t, tc.want, err.Kind)
			require.Equal(t, "boom", err.Message)
		})
	}
}

func TestUnknownErrorCarriesRawMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, 400, "Wishlist limit reached (1000 items maximum)", "")
	}))
	defer srv.Close()

	c := New(srv.URL, identity.NewStatic("tok", ""))
	_, err := c.ListSaved(context.Background(), 20, 0)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindUnknown, apiErr.Kind)
	require.Equal(t, "Wishlist limit reached (1000 items maximum)", apiErr.Message)
}

func TestCredentialAttachedWhenPresent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		jsonOK(w, map[string]any{"wishlist": []any{}, "pagination": map[string]any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, identity.NewStatic("tok-abc", ""))
	_, err := c.ListSaved(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestUnauthenticatedWhenNoCredential(t *testing.T) {
	var gotAuth string
	var gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		jsonOK(w, map[string]any{"wishlist": []any{}, "pagination": map[string]any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, identity.NewStatic("", ""))
	_, err := c.ListSaved(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Empty(t, gotAuth)
	require.NotEmpty(t, gotRequestID)
}

func TestAuthExpiredRefreshesAndRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			require.Equal(t, "Bearer old", r.Header.Get("Authorization"))
			jsonError(w, 401, "Token has expired", "TOKEN_EXPIRED")
			return
		}
		require.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		jsonOK(w, map[string]any{"wishlist": []any{}, "pagination": map[string]any{}})
	}))
	defer srv.Close()

	ident := identity.NewStatic("old", "fresh")
	c := New(srv.URL, ident)

	_, err := c.ListSaved(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls), "exactly one retry")
	require.Equal(t, 1, ident.Refreshes())
}

func TestSecondAuthExpiredAfterRefreshSurfacesError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		jsonError(w, 401, "Token has expired", "TOKEN_EXPIRED")
	}))
	defer srv.Close()

	ident := identity.NewStatic("old", "fresh")
	c := New(srv.URL, ident)

	_, err := c.ListSaved(context.Background(), 20, 0)
	require.True(t, IsKind(err, KindAuthExpired))
	require.Equal(t, int32(2), atomic.LoadInt32(&calls), "retry budget is one resubmission")
	require.Equal(t, 1, ident.Refreshes(), "no second refresh attempt")
}

func TestFailedRefreshSignalsReauthWithLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, 401, "Token has expired", "TOKEN_EXPIRED")
	}))
	defer srv.Close()

	ident := identity.NewStatic("old", "")
	ident.FailRefresh(context.DeadlineExceeded)

	var reauthLoc string
	var reauthCalls int
	c := New(srv.URL, ident,
		WithLocation(func() string { return "/wishlist?page=2" }),
		WithReauthHandler(func(returnTo string) {
			reauthCalls++
			reauthLoc = returnTo
		}),
	)

	_, err := c.ListSaved(context.Background(), 20, 0)
	require.True(t, IsKind(err, KindAuthExpired))
	require.Equal(t, 1, reauthCalls)
	require.Equal(t, "/wishlist?page=2", reauthLoc)
}

func TestTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		jsonOK(w, map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, identity.NewStatic("tok", ""), WithTimeout(30*time.Millisecond))
	_, err := c.ListSaved(context.Background(), 20, 0)
	require.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestConnectionFailureClassifiedServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(srv.URL, identity.NewStatic("tok", ""))
	_, err := c.ListSaved(context.Background(), 20, 0)
	require.True(t, IsKind(err, KindServerUnavailable), "got %v", err)
}

func TestRetrySendsIdenticalPayload(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(buf))
		if len(bodies) == 1 {
			jsonError(w, 401, "expired", "TOKEN_EXPIRED")
			return
		}
		jsonOK(w, map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, identity.NewStatic("old", "fresh"))
	err := c.RemoveSaved(context.Background(), "prod-1")
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	require.Equal(t, bodies[0], bodies[1])
}

func TestRetryableKinds(t *testing.T) {
	require.True(t, (&Error{Kind: KindTimeout}).Retryable())
	require.True(t, (&Error{Kind: KindServerUnavailable}).Retryable())
	require.False(t, (&Error{Kind: KindNotFound}).Retryable())
	require.False(t, (&Error{Kind: KindAuthExpired}).Retryable())
}
