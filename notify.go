package khata

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NotificationKind names a user-facing event raised by the client.
type NotificationKind string

const (
	NotifyUnauthorized   NotificationKind = "unauthorized"
	NotifySessionExpired NotificationKind = "session_expired"
	NotifyRefreshFailed  NotificationKind = "refresh_failed"
	NotifyForbidden      NotificationKind = "forbidden"
	NotifyNotFound       NotificationKind = "not_found"
	NotifyLoginSuccess   NotificationKind = "login_success"
	NotifyLoginFailure   NotificationKind = "login_failure"
	NotifyLogout         NotificationKind = "logout"
)

// Level is the severity a front end would render a notification with.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Default notification texts.
const (
	MessageUnauthorized   = "You are not authorized!"
	MessageSessionExpired = "Session expired. Please log in again."
	MessageRefreshFailed  = "Failed to refresh token. Please log in again."
	MessageForbidden      = "Forbidden access"
	MessageNotFound       = "Resource not found"
	MessageLoginSuccess   = "Logged in successfully."
	MessageLoginFailure   = "Login failed. Please check your credentials."
	MessageLogout         = "Logged out."
)

// Notification is a transient message for the user, the equivalent of a toast.
type Notification struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      NotificationKind  `json:"kind"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Path      string            `json:"path,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NotificationSink receives notifications. Emit must not block for long; the client delivers
// through a buffered dispatcher when notifications are enabled.
type NotificationSink interface {
	Emit(ctx context.Context, n Notification)
}

// NoOpSink drops notifications.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Notification) {}

// ChannelSink writes notifications into a buffered channel.
type ChannelSink struct {
	ch chan Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		ch: make(chan Notification, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, n Notification) {
	select {
	case s.ch <- n:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Notifications() <-chan Notification {
	return s.ch
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, n Notification) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LogSink writes notifications as structured log events.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) LogSink {
	return LogSink{log: log}
}

func (s LogSink) Emit(_ context.Context, n Notification) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = s.log.Error()
	case LevelWarning:
		ev = s.log.Warn()
	default:
		ev = s.log.Info()
	}
	ev = ev.Str("kind", string(n.Kind))
	if n.Path != "" {
		ev = ev.Str("path", n.Path)
	}
	for k, v := range n.Metadata {
		ev = ev.Str(k, v)
	}
	ev.Msg(n.Message)
}

func withTimestamp(n Notification) Notification {
	n.Timestamp = time.Now().UTC()
	return n
}

func newNotification(kind NotificationKind, path string) Notification {
	n := Notification{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Path:      path,
	}
	switch kind {
	case NotifyUnauthorized:
		n.Level, n.Message = LevelError, MessageUnauthorized
	case NotifySessionExpired:
		n.Level, n.Message = LevelWarning, MessageSessionExpired
	case NotifyRefreshFailed:
		n.Level, n.Message = LevelError, MessageRefreshFailed
	case NotifyForbidden:
		n.Level, n.Message = LevelError, MessageForbidden
	case NotifyNotFound:
		n.Level, n.Message = LevelWarning, MessageNotFound
	case NotifyLoginSuccess:
		n.Level, n.Message = LevelSuccess, MessageLoginSuccess
	case NotifyLoginFailure:
		n.Level, n.Message = LevelError, MessageLoginFailure
	case NotifyLogout:
		n.Level, n.Message = LevelInfo, MessageLogout
	default:
		n.Level = LevelInfo
	}
	return n
}
