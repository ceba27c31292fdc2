package khata

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultNotificationTexts(t *testing.T) {
	cases := map[NotificationKind]struct {
		level   Level
		message string
	}{
		NotifyUnauthorized:   {LevelError, "You are not authorized!"},
		NotifySessionExpired: {LevelWarning, "Session expired. Please log in again."},
		NotifyRefreshFailed:  {LevelError, "Failed to refresh token. Please log in again."},
		NotifyForbidden:      {LevelError, "Forbidden access"},
		NotifyNotFound:       {LevelWarning, "Resource not found"},
		NotifyLoginSuccess:   {LevelSuccess, "Logged in successfully."},
	}
	for kind, want := range cases {
		n := newNotification(kind, "/x")
		if n.Level != want.level || n.Message != want.message || n.Path != "/x" || n.Timestamp.IsZero() {
			t.Fatalf("%s: unexpected notification %+v", kind, n)
		}
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), newNotification(NotifyForbidden, "/stationary-product/product"))
	sink.Emit(context.Background(), newNotification(NotifyLogout, ""))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Notification
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if first.Kind != NotifyForbidden || first.Path != "/stationary-product/product" {
		t.Fatalf("unexpected first line %+v", first)
	}
	if strings.Contains(lines[1], `"path"`) {
		t.Fatal("empty path must be omitted")
	}
}

func TestLogSinkWritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	n := newNotification(NotifySessionExpired, "/auth/refresh-token")
	n.Metadata = map[string]string{"reason": "refresh failed"}
	sink.Emit(context.Background(), n)

	var ev map[string]any
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if ev["level"] != "warn" || ev["kind"] != "session_expired" || ev["reason"] != "refresh failed" {
		t.Fatalf("unexpected log event %v", ev)
	}
	if ev["message"] != MessageSessionExpired {
		t.Fatalf("unexpected message %v", ev["message"])
	}
}

func TestNotificationsDisabled(t *testing.T) {
	fb := newFakeBackend(t)
	sink := NewChannelSink(4)
	c := newTestClient(t, fb.baseURL(), nil, sink, func(cfg *Config) {
		cfg.Notifications.Enabled = false
	})

	c.NotifyKind(context.Background(), NotifyUnauthorized, "")
	if got := drain(t, c, sink); len(got) != 0 {
		t.Fatalf("expected no notifications when disabled, got %+v", got)
	}
	if c.NotificationsDropped() != 0 {
		t.Fatal("disabled notifications are not counted as dropped")
	}
}
