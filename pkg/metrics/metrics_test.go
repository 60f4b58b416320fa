package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveQuery(t *testing.T) {
	m := New()
	m.ObserveQuery(time.Millisecond, 3, nil)
	m.ObserveQuery(time.Millisecond, 0, nil)
	m.ObserveQuery(0, 0, errors.New("bad k"))

	body := scrape(t, m)
	assert.Contains(t, body, `autocomplete_queries_total{result="hit"} 1`)
	assert.Contains(t, body, `autocomplete_queries_total{result="empty"} 1`)
	assert.Contains(t, body, `autocomplete_queries_total{result="invalid"} 1`)
	assert.Contains(t, body, "autocomplete_query_duration_seconds_count 2")
	assert.Contains(t, body, "autocomplete_results_count_sum 3")
}

func TestObserveLoadAndTerms(t *testing.T) {
	m := New()
	m.ObserveLoad(&suggest.LoadReport{Total: 3, Applied: 2, Failed: []suggest.EntryError{{Index: 1}}})
	m.ObserveUpsert(nil)
	m.SetTerms(3)

	body := scrape(t, m)
	assert.Contains(t, body, `autocomplete_ingest_entries_total{status="applied"} 3`)
	assert.Contains(t, body, `autocomplete_ingest_entries_total{status="rejected"} 1`)
	assert.Contains(t, body, "autocomplete_terms 3")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery(time.Second, 1, nil)
		m.ObserveLoad(&suggest.LoadReport{})
		m.ObserveUpsert(nil)
		m.SetTerms(1)
	})
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SetTerms(42)
	b.SetTerms(7)
	assert.Contains(t, scrape(t, a), "autocomplete_terms 42")
	assert.Contains(t, scrape(t, b), "autocomplete_terms 7")
}
