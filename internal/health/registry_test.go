package health

import "testing"

func TestSnapshotReportsDegradedOverall(t *testing.T) {
	registry := NewRegistry()
	registry.Set("scheduler", StateOK, "")
	registry.Set("store", StateDegraded, "ping failed")

	overall, statuses := registry.Snapshot()
	if overall != StateDegraded {
		t.Fatalf("expected degraded overall, got %s", overall)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 components, got %d", len(statuses))
	}
	if statuses[0].Name != "scheduler" || statuses[1].Name != "store" {
		t.Fatalf("components not sorted: %+v", statuses)
	}
}

func TestSnapshotHealthy(t *testing.T) {
	registry := NewRegistry()
	registry.Set("api", StateOK, "serving")
	if overall, _ := registry.Snapshot(); overall != StateOK {
		t.Fatalf("expected ok overall, got %s", overall)
	}
}

func TestSetIgnoresEmptyName(t *testing.T) {
	registry := NewRegistry()
	registry.Set("  ", StateOK, "")
	if _, statuses := registry.Snapshot(); len(statuses) != 0 {
		t.Fatal("empty component names must be ignored")
	}
}
