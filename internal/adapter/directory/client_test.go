package directory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/streamflow-sync/internal/adapter/upstream"
	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	api := upstream.New("directory", 5*time.Second, discardLogger(), upstream.WithBackoff(0))
	return NewClient(baseURL, api, discardLogger())
}

func TestClient_GetRiver_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rivers/r-1", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"uuid":"r-1","siteCode":"08158000","stateAbbr":"TX","name":"Colorado River"}`))
	}))
	defer srv.Close()

	river, err := testClient(srv.URL).GetRiver(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.River{ID: "r-1", SiteCode: "08158000", StateAbbr: "TX", Name: "Colorado River"}, river)
}

func TestClient_GetRiver_EscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rivers/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"siteCode":"1","stateAbbr":"TX"}`))
	}))
	defer srv.Close()

	river, err := testClient(srv.URL).GetRiver(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", river.ID, "missing id falls back to the requested one")
}

func TestClient_GetRiver_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such river", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetRiver(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, domain.StatusCode(err))
	assert.Contains(t, err.Error(), "get river missing")
}

func TestClient_ListRivers_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rivers", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[
			{"uuid":"r1","siteCode":"08086000","stateAbbr":"TX"},
			{"id":"r2","siteCode":"07157950","stateAbbr":"OK"}
		]`))
	}))
	defer srv.Close()

	rivers, err := testClient(srv.URL).ListRivers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.River{
		{ID: "r1", SiteCode: "08086000", StateAbbr: "TX"},
		{ID: "r2", SiteCode: "07157950", StateAbbr: "OK"},
	}, rivers)
}

func TestClient_ListRivers_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rivers":`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListRivers(context.Background())
	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "river listing", perr.Source)
}

func TestClient_ListRivers_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListRivers(context.Background())
	assert.Equal(t, http.StatusInternalServerError, domain.StatusCode(err))
}
