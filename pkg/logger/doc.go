// Package logger builds configured slog.Logger instances.
//
// It supports JSON and text output, static attributes, and context
// extractors that inject request-scoped values (such as request IDs)
// into every record logged with a context-aware method.
//
//	log := logger.New(
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithFormat(logger.FormatText),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
package logger
