// Package logger provides structured logging for shopkit using zerolog.
//
// Loggers are scoped per component and carry the request identifiers the
// pipeline attaches to its context, so one dispatch can be followed across
// retries and a shared session refresh.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("shopdemo").WithComponent("session")
//	log.Info("refresh finished", logger.Fields(logger.FieldFlight, 3))
package logger
