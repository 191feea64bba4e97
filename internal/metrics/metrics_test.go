package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adamavenir/frayfeed/internal/feed"
)

var _ feed.Metrics = (*Recorder)(nil)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.EventDropped("duplicate")
	r.EventDropped("duplicate")
	r.HistoryLoaded("older", 12)
	r.SweepHealed("duplicates", 0)
	r.SweepHealed("resynced", 2)

	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	tests := []struct {
		name string
		want float64
	}{
		{"frayfeed_events_dropped_total", 2},
		{"frayfeed_history_pages_total", 1},
		{"frayfeed_sweep_healed_total", 2},
	}
	for _, tt := range tests {
		if got := values[tt.name]; got != tt.want {
			t.Fatalf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandlerServesText(t *testing.T) {
	r := New()
	r.SendCompleted("ok")
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `frayfeed_sends_total{outcome="ok"} 1`) {
		t.Fatalf("missing send counter in:\n%s", body)
	}
}
