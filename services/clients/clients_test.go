package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func staticTokens(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestConnectionClient_ConnectionExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connections/connection/database", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		writeJSON(t, w, []DatabaseConnection{
			{ConnectionID: 3, ConnectionName: "warehouse", Type: "postgres"},
			{ConnectionID: 8, ConnectionName: "crm", Type: "mysql"},
		})
	}))
	defer srv.Close()

	client := NewConnectionClient(srv.URL, time.Second, staticTokens("svc-token"))

	ok, err := client.ConnectionExists(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ConnectionExists(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnectionClient_UpstreamFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	client := NewConnectionClient(srv.URL, time.Second, staticTokens("t"))

	_, err := client.ConnectionExists(context.Background(), 1)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
	assert.Equal(t, "connection-service-status-502", upErr.Code())

	srv.Close()
	_, err = client.ConnectionExists(context.Background(), 1)
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 0, upErr.StatusCode)
	assert.Equal(t, "connection-service-unreachable", upErr.Code())
}

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) { return nil, errors.New("realm down") }

func TestConnectionClient_TokenFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	_, err := NewConnectionClient(srv.URL, time.Second, failingTokens{}).ListDatabases(context.Background())

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Contains(t, upErr.Error(), "realm down")
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestPipelineClient_FindByProfileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dataPipeline/getByProfileId", r.URL.Path)
		switch r.URL.Query().Get("dataProfileId") {
		case "1":
			writeJSON(t, w, PipelineAssociation{DataPipelineID: 12, DataPipelineName: "nightly"})
		case "2":
			writeJSON(t, w, map[string]interface{}{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewPipelineClient(srv.URL, time.Second, staticTokens("t"))

	got, err := client.FindByProfileID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nightly", got.DataPipelineName)

	got, err = client.FindByProfileID(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = client.FindByProfileID(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestServiceAccountTokenSource(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/realms/acme/protocol/openid-connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "svc", r.PostForm.Get("username"))
		assert.Equal(t, "profile-service", r.PostForm.Get("client_id"))
		writeJSON(t, w, map[string]interface{}{
			"access_token": "abc",
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	}))
	defer srv.Close()

	tokens := NewServiceAccountTokenSource(context.Background(), ServiceAccountConfig{
		ServerURL:    srv.URL + "/",
		Realm:        "acme",
		ClientID:     "profile-service",
		ClientSecret: "secret",
		Username:     "svc",
		Password:     "pw",
	})

	for i := 0; i < 3; i++ {
		tok, err := tokens.Token()
		require.NoError(t, err)
		assert.Equal(t, "abc", tok.AccessToken)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "token is reused until expiry")
}

func TestFetchRealmPublicKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/data":
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(t, w, map[string]string{"realm": "data", "public_key": "MIIBIjANBgkq"})
		case "/realms/bare":
			writeJSON(t, w, map[string]string{"realm": "bare"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	key, err := FetchRealmPublicKey(context.Background(), srv.URL, "data", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "MIIBIjANBgkq", key)

	_, err = FetchRealmPublicKey(context.Background(), srv.URL, "bare", time.Second)
	assert.ErrorContains(t, err, "publishes no public key")

	_, err = FetchRealmPublicKey(context.Background(), srv.URL, "missing", time.Second)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "keycloak-status-404", upErr.Code())
}
