package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerMiddlewareLevelsByStatus(t *testing.T) {
	cases := map[int]zapcore.Level{
		http.StatusOK:                  zapcore.InfoLevel,
		http.StatusConflict:            zapcore.WarnLevel,
		http.StatusInternalServerError: zapcore.ErrorLevel,
	}
	for status, level := range cases {
		core, logs := observer.New(zapcore.DebugLevel)
		handler := InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("ok"))
		})))

		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.URL.Path = "/orders\x00x"
		req.RemoteAddr = "10.0.0.1:5555"
		handler.ServeHTTP(httptest.NewRecorder(), req)

		entries := logs.FilterMessage("request completed").All()
		if len(entries) != 1 {
			t.Fatalf("status %d: expected one completion entry, got %d", status, len(entries))
		}
		entry := entries[0]
		if entry.Level != level {
			t.Errorf("status %d: expected level %s, got %s", status, level, entry.Level)
		}
		fields := entry.ContextMap()
		if fields["path"] != "/ordersx" || fields["remote_ip"] != "10.0.0.1" || fields["bytes"] != int64(2) {
			t.Errorf("status %d: unexpected fields %v", status, fields)
		}
	}
}

func TestClipCountsRunes(t *testing.T) {
	if got := clip("héllo\nworld", 4); got != "héll" {
		t.Fatalf("unexpected clip %q", got)
	}
	if got := remoteIP(" not-an-addr "); got != "not-an-addr" {
		t.Fatalf("unexpected remote ip %q", got)
	}
	if !strings.HasPrefix(routePattern(httptest.NewRequest(http.MethodGet, "/", nil)), unmatchedRoute) {
		t.Fatal("expected unmatched route without chi context")
	}
}
