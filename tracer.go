package fhirpath

import (
	"github.com/rs/zerolog"

	"github.com/gofhir/fhirpath/types"
)

// LogTracer writes trace() output through a zerolog logger at debug
// level, one event per trace call.
type LogTracer struct {
	Logger zerolog.Logger
}

// NewLogTracer creates a tracer writing to the given logger.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{Logger: logger}
}

// Trace implements interp.Tracer.
func (t *LogTracer) Trace(name string, value types.Collection) {
	items := make([]string, 0, len(value))
	for _, e := range value {
		items = append(items, e.String())
	}
	t.Logger.Debug().Str("trace", name).Strs("value", items).Msg("fhirpath trace")
}
