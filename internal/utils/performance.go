package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// Operations slower than slow are logged at warn level.
//
// Usage:
//
//	defer utils.OperationTimer("record_all", time.Minute, log)()
func OperationTimer(operation string, slow time.Duration, log zerolog.Logger) func() {
	return operationTimer(operation, slow, log, time.Now)
}

func operationTimer(operation string, slow time.Duration, log zerolog.Logger, now func() time.Time) func() {
	start := now()

	return func() {
		duration := now().Sub(start)

		if slow > 0 && duration > slow {
			log.Warn().
				Str("operation", operation).
				Dur("duration_ms", duration).
				Dur("threshold_ms", slow).
				Msg("Slow operation detected")
			return
		}

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")
	}
}
