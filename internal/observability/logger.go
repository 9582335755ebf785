package observability

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// serviceName is stamped on every log line and Sentry event so the
// aggregator can tell this service apart from the storefront.
const serviceName = "aetherium-api"

// Logger emits one JSON object per line on stdout. Every line carries
// ts, level, msg and service; callers add the rest as fields.
type Logger struct {
	base *log.Logger
}

func NewLogger() *Logger {
	return &Logger{base: log.New(os.Stdout, "", 0)}
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.write("info", msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.write("error", msg, fields)
}

func (l *Logger) write(level, msg string, fields map[string]any) {
	payload := map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   level,
		"msg":     msg,
		"service": serviceName,
	}
	for k, v := range fields {
		payload[k] = v
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","msg":"failed to encode log"}`)
		return
	}

	l.base.Println(string(encoded))
}
