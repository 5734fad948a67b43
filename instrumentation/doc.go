// Package instrumentation provides OpenTelemetry metrics and tracing for the
// fulmine library.
//
// The package is built around a single Instrumentation value that owns the
// meter and tracer providers and a Metrics holder with pre-created
// instruments. When Enabled is false, no-op providers are used and every
// recording call is free.
//
// Basic usage:
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-auth-server",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	store.SetInstrumentation(inst)
//	srv.SetInstrumentation(inst)
//
// SECURITY: never record credential values (authorization codes, bearer
// tokens, refresh tokens, session secrets) as span attributes or metric
// labels. Only metadata such as client IDs, scope strings, result labels and
// durations is safe to export.
package instrumentation
