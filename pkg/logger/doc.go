// Package logger builds *slog.Logger instances for the billing services.
//
// New assembles a text or JSON handler from functional options and wraps it
// with a decorator that copies request-scoped values (request id, tenant id)
// from context.Context into every record. Attribute helpers in attr.go keep
// key names consistent across packages:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "qrmenu"))
//	log.ErrorContext(ctx, "settlement failed",
//		logger.PaymentID(p.ID),
//		logger.Error(err),
//	)
//
// Password material never goes through these helpers.
package logger
