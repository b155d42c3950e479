package appscript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL+"/config?v=2", srv.URL+"/benefits", zaptest.NewLogger(t)), srv
}

func TestFetchConfig(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/config", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("v"))
		switch r.URL.Query().Get("agent") {
		case "bj":
			w.Write([]byte(`{"name":"Bakri","agency":"BJ Agency","whatsapp":"60123","hargaUrl":"https://rates","leadsUrl":""}`))
		case "a b":
			w.Write([]byte(`{"name":"Spaced"}`))
		default:
			w.Write([]byte(`{"error":"Agent not found"}`))
		}
	})

	profile, err := c.FetchConfig(context.Background(), "bj")
	require.NoError(t, err)
	assert.Equal(t, "Bakri", profile.Name)
	assert.Equal(t, "https://rates", profile.HargaURL)
	assert.Empty(t, profile.LeadsURL)

	profile, err = c.FetchConfig(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, "Spaced", profile.Name)

	_, err = c.FetchConfig(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAgentConfig)
	assert.ErrorContains(t, err, "Agent not found")
}

func TestFetchConfigHTTPFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.FetchConfig(context.Background(), "bj")
	assert.ErrorContains(t, err, "status 500")
}

func TestFetchRates(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rates":
			w.Write([]byte(`{"medical150":[{"age":30,"l_ns_basic":100}]}`))
		case "/broken":
			w.Write([]byte(`<html>nope</html>`))
		}
	})

	raw, err := c.FetchRates(context.Background(), srv.URL+"/rates")
	require.NoError(t, err)
	assert.JSONEq(t, `{"medical150":[{"age":30,"l_ns_basic":100}]}`, string(raw))

	// decoding belongs to the cache, the client hands the body back untouched
	raw, err = c.FetchRates(context.Background(), srv.URL+"/broken")
	require.NoError(t, err)
	assert.Equal(t, `<html>nope</html>`, string(raw))

	_, err = c.FetchRates(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchBenefits(t *testing.T) {
	var payload atomic.Value
	payload.Store(`{"hibah":{"nova":[{"icon":"x","text":"Kematian","value":"RM100k"}]}}`)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload.Load().(string)))
	})

	catalog, ok, err := c.FetchBenefits(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, catalog["nova"], 1)
	assert.Equal(t, "RM100k", catalog["nova"][0].Value)

	payload.Store(`{"medical":{}}`)
	catalog, ok, err = c.FetchBenefits(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, catalog)
}
