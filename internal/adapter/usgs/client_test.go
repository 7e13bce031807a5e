package usgs

import (
	"context"
	"errors"
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

const reportJSON = `{"value":{"timeSeries":[{
	"sourceInfo":{"siteName":"BRAZOS RV NR ASPERMONT","siteCode":[{"value":"08086000","network":"NWIS","agencyCode":"USGS"}]},
	"variable":{"unit":{"unitCode":"ft3/s"},"noDataValue":-999999.0},
	"values":[{"value":[
		{"value":"512.3","qualifiers":["P"],"dateTime":"2024-01-01T00:00:00.000-06:00"},
		{"value":"515.0","qualifiers":["P"],"dateTime":"2024-01-01T00:15:00.000-06:00"}
	]}]
}]}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string, timeout time.Duration) *Client {
	api := upstream.New("usgs", timeout, discardLogger(), upstream.WithBackoff(0))
	return NewClient(baseURL, "P7D", api, discardLogger())
}

func TestClient_GetReport_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nwis/iv/", r.URL.Path)
		assert.Equal(t, "format=json,1.1&parameterCd=00060&period=P7D&sites=08086000,08103900", r.URL.RawQuery)
		q := r.URL.Query()
		assert.Equal(t, "08086000,08103900", q.Get("sites"))
		_, _ = w.Write([]byte(reportJSON))
	}))
	defer srv.Close()

	report, err := testClient(srv.URL+"/nwis/iv/", 5*time.Second).GetReport(context.Background(), []string{"08086000", "08103900"})
	require.NoError(t, err)
	require.Len(t, report.Value.TimeSeries, 1)
	assert.Equal(t, "08086000", report.Value.TimeSeries[0].SiteCode())
	assert.Len(t, report.Value.TimeSeries[0].Samples(), 2)
}

func TestClient_GetReport_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad sites", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).GetReport(context.Background(), []string{"x"})
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "usgs", ue.Service)
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
}

func TestClient_GetReport_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).GetReport(context.Background(), []string{"x"})
	var perr *domain.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestClient_GetReport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).GetReport(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamTimeout))
	assert.Equal(t, 0, domain.StatusCode(err))
}

func TestClient_ReportURL_KeepsExistingQuery(t *testing.T) {
	c := testClient("https://waterservices.usgs.gov/nwis/iv/?siteStatus=active", time.Second)
	u, err := c.reportURL([]string{"1"})
	require.NoError(t, err)
	assert.Equal(t, "https://waterservices.usgs.gov/nwis/iv/?format=json,1.1&parameterCd=00060&period=P7D&siteStatus=active&sites=1", u)
}
