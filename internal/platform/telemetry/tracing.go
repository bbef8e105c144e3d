package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/clinicbook/clinicbook"

// Tracer returns the named tracer from the global provider. Spans are no-ops
// unless the binary installs an SDK provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + component)
}
