package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &m); err != nil {
		t.Fatalf("decode %q: %v", b, err)
	}
	return m
}

func TestFromContext_AppliesFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info", Service: "svc"}, &buf)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithAOIKey(ctx, "abc")
	ctx = WithLayer(ctx, "soil")
	FromContext(ctx, &zl).Info().Msg("hello")

	m := decode(t, buf.Bytes())
	for k, want := range map[string]string{"request_id": "req-1", "aoi_key": "abc", "layer": "soil", "service": "svc", "msg": "hello"} {
		if m[k] != want {
			t.Fatalf("%s got=%v want %s", k, m[k], want)
		}
	}
	if RequestID(ctx) != "req-1" {
		t.Fatalf("RequestID=%q", RequestID(ctx))
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	id := RequestID(WithRequestID(context.Background(), ""))
	if len(id) != 16 {
		t.Fatalf("generated id %q", id)
	}
}

func TestSlog_LevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	l := NewSlog(&zl).With("component", "test")

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn: %s", buf.String())
	}

	l.WarnContext(WithComponent(context.Background(), "ctx"), "kept",
		"n", 3, "took", 1500*time.Millisecond, "err", errors.New("boom"), "gen", uint64(7))
	m := decode(t, buf.Bytes())
	if m["level"] != "warn" || m["msg"] != "kept" || m["err"] != "boom" || m["n"] != float64(3) || m["gen"] != float64(7) {
		t.Fatalf("unexpected record %v", m)
	}
	if !strings.Contains(buf.String(), `"took":1500`) {
		t.Fatalf("duration not encoded in ms: %s", buf.String())
	}
}
