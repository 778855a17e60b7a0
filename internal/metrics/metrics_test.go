package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("ok")
	c.RecordRedemption("denied")
	c.RecordRefresh("ok")
	c.RecordSyncOutcome("registered")
	c.RecordHTTPStatus("200")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	want := map[string]bool{
		"authhub_logins_total":           false,
		"authhub_code_redemptions_total": false,
		"authhub_token_refreshes_total":  false,
		"authhub_identity_sync_total":    false,
		"authhub_http_status_total":      false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s was not gathered", name)
		}
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}
