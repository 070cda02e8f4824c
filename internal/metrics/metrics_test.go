package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("manual", time.Now(), nil)
		m.ItemSaved("news", "enriched")
		m.ItemSkipped()
		m.Purged(3)
		m.ImageLookup()
		m.ImageResolved("")
		m.Extraction(true)
	})
	assert.Nil(t, m.Registry())

	h := m.Instrument("/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	assert.NotNil(t, h)
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveRun("manual", time.Now(), nil)
	m.ObserveRun("manual", time.Now(), errors.New("boom"))
	m.ItemSaved("news", "enriched")
	m.ItemSaved("news", "enriched")
	m.Purged(4)
	m.Purged(0)
	m.ImageResolved("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("manual", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("manual", OutcomeFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsSaved.WithLabelValues("news", "enriched")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ItemsPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesResolved.WithLabelValues("none")))
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New()
	h := m.Instrument("/ListItems", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ListItems", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/ListItems", "400")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "layofflens_http_requests_total")
}
