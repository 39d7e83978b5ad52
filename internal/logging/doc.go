// Package logging provides structured logging for advisord.
//
// Logger wraps Zap with context-aware methods that add correlation fields
// (trace_id, span_id, session.id, request.id) to every entry, a redacting
// encoder for credentials, sampling below Error, and an optional second
// output through the OpenTelemetry log bridge.
//
// # Usage
//
//	cfg, err := logging.ConfigFrom(appCfg.Logging, "advisord")
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "consultation completed", zap.Duration("duration", d))
//
// Packages that take a plain *zap.Logger receive logger.Underlying().
//
// # Secret Redaction
//
// Field keys such as api_key and authorization are replaced with
// [REDACTED]; string values that look like bearer tokens or provider API keys
// are replaced with [REDACTED:pattern]. Use Secret or RedactedString to log
// that a credential is present without its value.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	svc := consult.NewService(a, store, consult.WithLogger(tl.Logger))
//	tl.AssertLogged(t, zapcore.InfoLevel, "consultation completed")
package logging
