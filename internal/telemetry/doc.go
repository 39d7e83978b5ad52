// Package telemetry sets up OpenTelemetry tracing and metrics for advisord.
//
// New builds a TracerProvider and MeterProvider that export over OTLP (gRPC
// or HTTP/protobuf) and installs them as the OTel globals. With telemetry
// disabled, Tracer and Meter return no-op implementations so instrumented
// code needs no conditionals:
//
//	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("github.com/fyrsmithlabs/advisord/internal/consult")
//
// Tests use NewTestTelemetry, which records spans in memory and exposes a
// manual metric reader.
package telemetry
