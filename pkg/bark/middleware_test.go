package bark_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sre-norns/cloudapi/pkg/bark"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testPayload struct {
	Name string `json:"name" yaml:"name"`
}

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/things", func(ctx *gin.Context) {
		bark.Reply(ctx, http.StatusOK, []testPayload{{Name: "a"}})
	})
	r.GET("/boom", func(ctx *gin.Context) {
		panic("boom")
	})
	r.GET("/images", bark.NotImplemented)
	return r
}

func serve(r http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestContentNegotiation(t *testing.T) {
	r := newTestEngine(bark.ContentTypeAPI())

	testCases := map[string]struct {
		given        string
		expectStatus int
		expectType   string
	}{
		"default-json": {
			given:        "",
			expectStatus: http.StatusOK,
			expectType:   "json",
		},
		"any": {
			given:        "*/*",
			expectStatus: http.StatusOK,
			expectType:   "json",
		},
		"yaml": {
			given:        "application/yaml",
			expectStatus: http.StatusOK,
			expectType:   "yaml",
		},
		"first-supported-wins": {
			given:        "text/html, text/yaml;q=0.9, application/json;q=0.8",
			expectStatus: http.StatusOK,
			expectType:   "yaml",
		},
		"unsupported": {
			given:        "application/xml",
			expectStatus: http.StatusNotAcceptable,
			expectType:   "json",
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			header := http.Header{}
			if test.given != "" {
				header.Set(bark.HTTPHeaderAccept, test.given)
			}

			w := serve(r, http.MethodGet, "/things", header)
			require.Equal(t, test.expectStatus, w.Code)
			require.Contains(t, w.Header().Get(bark.HTTPHeaderContentType), test.expectType)

			if test.expectStatus != http.StatusOK {
				var got bark.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				require.Equal(t, "NotAcceptable", got.Code)
				return
			}

			var got []testPayload
			if test.expectType == "yaml" {
				require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &got))
			} else {
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			}
			require.Equal(t, []testPayload{{Name: "a"}}, got)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := newTestEngine(bark.RequestID())

	w := serve(r, http.MethodGet, "/things", nil)
	_, err := uuid.Parse(w.Header().Get(bark.HTTPHeaderRequestID))
	require.NoError(t, err)

	w = serve(r, http.MethodGet, "/things", http.Header{bark.HTTPHeaderRequestID: {"req-42"}})
	require.Equal(t, "req-42", w.Header().Get(bark.HTTPHeaderRequestID))
}

func TestDatacenter(t *testing.T) {
	w := serve(newTestEngine(bark.Datacenter("us-east-1")), http.MethodGet, "/things", nil)
	require.Equal(t, "us-east-1", w.Header().Get(bark.HTTPHeaderDatacenter))

	w = serve(newTestEngine(bark.Datacenter("")), http.MethodGet, "/things", nil)
	require.Empty(t, w.Header().Values(bark.HTTPHeaderDatacenter))
}

func TestRequestLoggerAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	r := newTestEngine(bark.RequestID(), bark.RequestLogger(log), bark.Recovery(log))

	w := serve(r, http.MethodGet, "/things?x=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var got bark.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "InternalError", got.Code)
	require.NotContains(t, w.Body.String(), "boom")

	require.Equal(t, 1, logs.FilterMessage("request served").Len())
	require.Equal(t, 1, logs.FilterMessage("handler panic").Len())
	require.Equal(t, 1, logs.FilterMessage("request failed").Len())

	served := logs.FilterMessage("request served").All()[0].ContextMap()
	require.Equal(t, "/things", served["path"])
	require.Equal(t, "x=1", served["query"])
	require.Equal(t, int64(http.StatusOK), served["status"])
	require.NotEmpty(t, served["request_id"])
}

func TestNotImplemented(t *testing.T) {
	w := serve(newTestEngine(), http.MethodGet, "/images", nil)
	require.Equal(t, http.StatusNotImplemented, w.Code)

	var got bark.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "NotImplemented", got.Code)
	require.Contains(t, got.Message, "/images")
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := bark.NewHTTPMetrics(reg, "test")
	require.NoError(t, err)

	_, err = bark.NewHTTPMetrics(reg, "test")
	require.Error(t, err, "metrics can only be registered once")

	r := newTestEngine(metrics.Middleware())
	serve(r, http.MethodGet, "/things", nil)
	serve(r, http.MethodGet, "/things", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP test_http_requests_total Number of HTTP requests served.
# TYPE test_http_requests_total counter
test_http_requests_total{code="200",method="GET",route="/things"} 2
test_http_requests_total{code="404",method="GET",route="unmatched"} 1
`), "test_http_requests_total"))
}

func TestNextPageURL(t *testing.T) {
	given, err := url.Parse("/acct1/machines?state=running&limit=2&offset=4")
	require.NoError(t, err)

	got := bark.NextPageURL(given, "token", "abc.def", "offset")
	require.Equal(t, "/acct1/machines?limit=2&state=running&token=abc.def", got.String())
	require.Equal(t, `</acct1/machines?limit=2&state=running&token=abc.def>; rel="next"`, bark.LinkHeader(got, "next"))

	// The source URL is left intact
	require.Equal(t, "/acct1/machines?state=running&limit=2&offset=4", given.String())
}
