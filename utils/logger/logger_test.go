package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
)

func TestRedactAttr(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactAttr}))

	l.Info("grant", "username", "a@b.c", "password", "pw", "Refresh_Token", "R1")

	entry := decode(t, &buf)
	assert.Equal(t, "a@b.c", entry["username"])
	assert.Equal(t, redacted, entry["password"])
	assert.Equal(t, redacted, entry["Refresh_Token"])
}

type countingHandler struct {
	level slog.Level
	seen  []string
	err   error
}

func (h *countingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.seen = append(h.seen, r.Message)
	return h.err
}
func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler(t *testing.T) {
	debug := &countingHandler{level: slog.LevelDebug}
	warn := &countingHandler{level: slog.LevelWarn, err: errors.New("sink down")}
	l := slog.New(NewMultiHandler(debug, warn))

	l.Debug("one")
	l.Warn("two")

	assert.Equal(t, []string{"one", "two"}, debug.seen)
	assert.Equal(t, []string{"two"}, warn.seen)

	h := NewMultiHandler(debug, warn)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "three", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
}

func TestKeyValue(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		attr   slog.Attr
		check  func(t *testing.T, kv log.KeyValue)
	}{
		{
			name:   "grouped key",
			prefix: "http.",
			attr:   slog.Int("status", 409),
			check: func(t *testing.T, kv log.KeyValue) {
				assert.Equal(t, "http.status", kv.Key)
				assert.Equal(t, int64(409), kv.Value.AsInt64())
			},
		},
		{
			name: "duration in milliseconds",
			attr: slog.Duration("latency", 1500*time.Millisecond),
			check: func(t *testing.T, kv log.KeyValue) {
				assert.Equal(t, int64(1500), kv.Value.AsInt64())
			},
		},
		{
			name: "error value",
			attr: slog.Any("error", errors.New("boom")),
			check: func(t *testing.T, kv log.KeyValue) {
				assert.Equal(t, "boom", kv.Value.AsString())
			},
		},
		{
			name: "sensitive value masked",
			attr: slog.String("client_secret", "s3cret"),
			check: func(t *testing.T, kv log.KeyValue) {
				assert.Equal(t, redacted, kv.Value.AsString())
			},
		},
		{
			name: "nested group",
			attr: slog.Group("user", slog.String("id", "u-1")),
			check: func(t *testing.T, kv log.KeyValue) {
				require.Equal(t, log.KindMap, kv.Value.Kind())
				m := kv.Value.AsMap()
				require.Len(t, m, 1)
				assert.Equal(t, "id", m[0].Key)
				assert.Equal(t, "u-1", m[0].Value.AsString())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, keyValue(tt.prefix, tt.attr))
		})
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, log.SeverityDebug, severity(slog.LevelDebug))
	assert.Equal(t, log.SeverityInfo, severity(slog.LevelInfo))
	assert.Equal(t, log.SeverityWarn, severity(slog.LevelWarn))
	assert.Equal(t, log.SeverityError, severity(slog.LevelError+4))
}
