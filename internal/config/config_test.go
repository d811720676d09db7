package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Name != "case-workflow-service" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %q", cfg.App.Addr())
	}
	if !cfg.Workflow.ReturnToOriginalAssignee {
		t.Fatal("returns should default to the analyst of record")
	}
	if cfg.Workflow.MaxBulkSize != 100 {
		t.Fatalf("unexpected bulk size %d", cfg.Workflow.MaxBulkSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9999")
	t.Setenv("WORKFLOW_RETURN_TO_ORIGINAL_ASSIGNEE", "false")
	t.Setenv("WORKFLOW_WORK_QUEUE_CACHE_TTL_SECONDS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != "9999" {
		t.Fatalf("unexpected port %q", cfg.App.Port)
	}
	if cfg.Workflow.ReturnToOriginalAssignee {
		t.Fatal("override should disable analyst-of-record returns")
	}
	if cfg.Workflow.WorkQueueCacheTTL() != 12*time.Second {
		t.Fatalf("unexpected cache ttl %s", cfg.Workflow.WorkQueueCacheTTL())
	}
}

func TestTimeoutHelpers(t *testing.T) {
	app := AppConfig{RequestTimeoutSeconds: 30}
	if app.RequestTimeout() != 30*time.Second {
		t.Fatalf("unexpected timeout %s", app.RequestTimeout())
	}
	if (AppConfig{}).RequestTimeout() != 0 {
		t.Fatal("zero config should disable the timeout")
	}
	if (WorkflowConfig{}).WorkQueueCacheTTL() != 0 {
		t.Fatal("zero config should disable the cache")
	}
}
