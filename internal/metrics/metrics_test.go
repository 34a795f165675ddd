package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservations(t *testing.T) {
	m := New()

	m.ObserveExtraction("basic", "ok")
	m.ObserveExtraction("basic", "ok")
	m.ObserveEngine("pdf-layout", "empty_text")
	m.ObserveModelCall("groq", "ok", 150*time.Millisecond)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveAnchors(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.extractions.WithLabelValues("basic", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.engineResults.WithLabelValues("pdf-layout", "empty_text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelCalls.WithLabelValues("groq", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveExtraction("basic", "ok")
	m.ObserveEngine("pdf-plain", "ok")
	m.ObserveModelCall("gemini", "error", time.Second)
	m.ObserveCache(true)
	m.ObserveAnchors(0)
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveExtraction("comprehensive", "no_anchor")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `quarterly_extractor_extractions_total{mode="comprehensive",outcome="no_anchor"} 1`))
}
