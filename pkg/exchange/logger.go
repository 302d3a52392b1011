package exchange

import (
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// restyLogger routes resty's own diagnostics through zerolog so they do not
// land on stderr underneath the terminal UI.
type restyLogger struct {
	logger zerolog.Logger
}

var _ resty.Logger = &restyLogger{}

func newRestyLogger() *restyLogger {
	return &restyLogger{
		logger: log.With().Str("component", "resty").Logger(),
	}
}

// Errorf is demoted to debug: Send already logs every failed exchange.
func (r *restyLogger) Errorf(format string, v ...interface{}) {
	r.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}

func (r *restyLogger) Warnf(format string, v ...interface{}) {
	r.logger.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (r *restyLogger) Debugf(format string, v ...interface{}) {
	r.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}
