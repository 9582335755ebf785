package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op when dsn is empty so local runs need no
// account. Events are tagged with the service name to match the log
// lines.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	}); err != nil {
		return err
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", serviceName)
	})

	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
