package worker

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// asynqLogger routes asynq's internal logs into zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func newAsynqLogger(lg zerolog.Logger) *asynqLogger {
	return &asynqLogger{log: lg.With().Str("component", "asynq").Logger()}
}

func (a *asynqLogger) Debug(args ...interface{}) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.log.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs at fatal level without exiting, then panics so asynq's
// goroutine unwinds.
func (a *asynqLogger) Fatal(args ...interface{}) {
	msg := fmt.Sprint(args...)
	a.log.WithLevel(zerolog.FatalLevel).Msg(msg)
	panic(msg)
}

// asynqLevel maps the global zerolog level onto asynq's.
func asynqLevel(l zerolog.Level) asynq.LogLevel {
	switch {
	case l <= zerolog.DebugLevel:
		return asynq.DebugLevel
	case l == zerolog.InfoLevel:
		return asynq.InfoLevel
	case l == zerolog.WarnLevel:
		return asynq.WarnLevel
	case l == zerolog.ErrorLevel:
		return asynq.ErrorLevel
	default:
		return asynq.FatalLevel
	}
}
