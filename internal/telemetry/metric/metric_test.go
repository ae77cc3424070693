package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry

	// None of these may panic.
	r.ObserveSave("ok")
	r.ObserveLoad("failed")
	r.ObserveRecovery("backup_restore")
	r.ObserveError("corruption")
	r.SetQuota(10, 100)
	r.AddCleanupEvictions(2)

	if r.Handler() == nil {
		t.Fatal("nil registry should still return a handler")
	}
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.ObserveSave("ok")
	r.ObserveSave("ok")
	r.ObserveSave("failed")
	r.ObserveError("quota_exceeded")
	r.SetQuota(512, 4096)
	r.AddCleanupEvictions(3)

	if got := testutil.ToFloat64(r.savesTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("saves ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.savesTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("saves failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("quota_exceeded")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.quotaUsedBytes); got != 512 {
		t.Fatalf("quota used = %v, want 512", got)
	}
	if got := testutil.ToFloat64(r.cleanupEvictions); got != 3 {
		t.Fatalf("evictions = %v, want 3", got)
	}
}
