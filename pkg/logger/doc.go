// Package logger builds slog loggers for devicekit services and defines the
// attribute names used across the module.
//
// New returns a *slog.Logger configured with functional options:
//
//	log := logger.New(
//	    logger.WithLevelName("debug"),
//	    logger.WithFormat(logger.FormatText),
//	    logger.WithService("detectd", "1.0.0"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//
// The handler is wrapped by NewContextHandler, which runs every
// registered ContextExtractor on each record.
//
// Attribute helpers keep key names consistent:
//
//	log.Info("device database loaded",
//	    logger.SnapshotID(id),
//	    logger.DataVersion(v),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error, Source, SnapshotID and DeviceID return an empty attribute for a nil
// or empty value, so they can be passed without a check.
package logger
