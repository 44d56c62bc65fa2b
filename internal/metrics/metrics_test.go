package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRecordingAndHandler(t *testing.T) {
	m := NewMetrics("test")

	m.RecordUpdate("message")
	m.RecordCommand("login")
	m.RecordSessionRefresh("success")
	m.RecordSessionLookup("hit")
	m.RecordDialogOutcome("login", "completed")
	m.SetDialogsActive(2)
	m.RecordAPILatency("/subscriber/profile", 0.2)
	m.RecordAPIError("/subscriber/profile")
	m.RecordSettlement("QRIS", "PENDING")
	m.SetLinkedAccounts(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_updates_total") {
		t.Fatalf("expected metrics output to contain updates counter")
	}
	if !strings.Contains(body, "test_api_latency_seconds") {
		t.Fatalf("expected metrics output to contain API latency histogram")
	}

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
	if !metricHasLabel(families, "test_settlements_total", "rail", "QRIS") {
		t.Fatalf("expected settlement counter with rail label")
	}
	if !metricHasLabel(families, "test_dialogs_total", "outcome", "completed") {
		t.Fatalf("expected dialog counter with outcome label")
	}
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	// Two instances must not collide; each owns a private registry.
	a := NewMetrics("a")
	b := NewMetrics("b")

	a.RecordCommand("login")
	b.RecordCommand("login")

	families, err := a.registry.Gather()
	if err != nil {
		t.Fatalf("expected gather to succeed: %v", err)
	}
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "b_") {
			t.Fatalf("registry a leaked metric %s", f.GetName())
		}
	}
}

func metricHasLabel(families []*dto.MetricFamily, name, key, value string) bool {
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == key && label.GetValue() == value {
					return true
				}
			}
		}
	}
	return false
}
