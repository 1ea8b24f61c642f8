/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package observe

import (
	"time"

	"github.com/acronis/go-docsubmit/admission"
	"github.com/acronis/go-docsubmit/log"
)

// LoggingObserver writes every event to the logger.
// Admitted submissions are logged at debug level, rejections at warn level,
// failures at error level and successful remote calls at info level.
type LoggingObserver struct {
	logger log.FieldLogger
}

// NewLoggingObserver creates a new LoggingObserver.
func NewLoggingObserver(logger log.FieldLogger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// Observe implements Observer.
func (o *LoggingObserver) Observe(e Event) {
	logger := o.logger
	if e.SubmissionID != "" {
		logger = logger.With(log.SubmissionID(e.SubmissionID))
	}

	switch e.Kind {
	case EventAdmission:
		switch e.Decision {
		case admission.Admitted:
			logger.Debug("submission admitted")
		case admission.Rejected:
			logger.Warn("request limit reached, submission rejected until the next window")
		default:
			logger.Warn("submission rejected", log.String("decision", e.Decision.String()))
		}

	case EventDispatchRejected:
		logger.Warn("submission is not dispatched", log.Error(e.Err))

	case EventSigningFailed:
		logger.Error("document signing failed", log.Error(e.Err))

	case EventRemoteCallCompleted:
		fields := []log.Field{log.Int("status_code", e.StatusCode), log.DurationIn(e.Duration, time.Millisecond)}
		if e.Err != nil {
			logger.Error("remote API call failed", append(fields, log.Error(e.Err))...)
			return
		}
		logger.Info("response received from remote API", fields...)

	default:
		logger.Warn("unknown event", log.String("kind", e.Kind.String()))
	}
}
