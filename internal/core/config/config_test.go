package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "DATA_SOURCE", "H3_RES", "H3_PARENT_RES", "REPORT_CACHE_ENABLED", "KAFKA_ENABLED"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8090" || c.DataSource != "file" {
		t.Fatalf("got addr=%q source=%q", c.Addr, c.DataSource)
	}
	if c.H3Res != 8 || c.H3ParentRes != 6 {
		t.Fatalf("got res=%d parent=%d want 8/6", c.H3Res, c.H3ParentRes)
	}
	if !c.ReportCacheEnabled || c.Kafka.Enabled {
		t.Fatalf("got cache=%v kafka=%v", c.ReportCacheEnabled, c.Kafka.Enabled)
	}
	if c.ReportTimeout != 30*time.Second {
		t.Fatalf("timeout=%s want 30s", c.ReportTimeout)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATA_SOURCE", "Postgres")
	t.Setenv("H3_RES", "20")
	t.Setenv("H3_PARENT_RES", "17")
	t.Setenv("REPORT_TTL_HOT", "2h")
	t.Setenv("LOG_CONSOLE", "yes")
	t.Setenv("REPORT_CACHE_LOCAL_SIZE", "oops")

	c := FromEnv()
	if c.DataSource != "postgres" {
		t.Fatalf("source=%q", c.DataSource)
	}
	if c.H3Res != 15 || c.H3ParentRes != 15 {
		t.Fatalf("res=%d parent=%d want clamped to 15", c.H3Res, c.H3ParentRes)
	}
	if c.TTLHot != 2*time.Hour || !c.LogConsole {
		t.Fatalf("ttl_hot=%s console=%v", c.TTLHot, c.LogConsole)
	}
	if c.ReportCacheLocal != 1024 {
		t.Fatalf("local=%d want default on bad int", c.ReportCacheLocal)
	}
}

func TestFromEnv_ParentNotFinerThanRes(t *testing.T) {
	t.Setenv("H3_RES", "5")
	t.Setenv("H3_PARENT_RES", "9")
	c := FromEnv()
	if c.H3ParentRes != 5 {
		t.Fatalf("parent=%d want 5", c.H3ParentRes)
	}
}
