package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a component-scoped zerolog wrapper. Every service in the engine
// creates one with its component name so log lines are attributable.
type Logger struct {
	*zerolog.Logger
	component string
}

var levels = map[string]zerolog.Level{
	"development": zerolog.DebugLevel,
	"staging":     zerolog.InfoLevel,
	"production":  zerolog.InfoLevel,
}

func New(component string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %s", component, i)
		},
	}

	l := zerolog.New(output).Level(levelFor(os.Getenv("APP_ENV"))).With().Timestamp().Logger()
	return &Logger{Logger: &l, component: component}
}

func levelFor(env string) zerolog.Level {
	if lvl, ok := levels[env]; ok {
		return lvl
	}
	return zerolog.DebugLevel
}

func (l *Logger) LogDebugf(format string, v ...interface{}) { l.Debug().Msgf(format, v...) }
func (l *Logger) LogInfof(format string, v ...interface{})  { l.Info().Msgf(format, v...) }
func (l *Logger) LogWarnf(format string, v ...interface{})  { l.Warn().Msgf(format, v...) }
func (l *Logger) LogErrorf(format string, v ...interface{}) { l.Error().Msgf(format, v...) }

func (l *Logger) LogInfo(msg string) { l.Info().Msg(msg) }
func (l *Logger) LogWarn(msg string) { l.Warn().Msg(msg) }

func (l *Logger) LogError(msg string, err error) {
	if err != nil {
		l.Error().Err(err).Msg(msg)
		return
	}
	l.Error().Msg(msg)
}

// LogInfra flags infrastructure-level failures (redis, queue broker, remote
// service unreachable) so a systemic outage stands out from a single job's
// action failure.
func (l *Logger) LogInfra(msg string, err error) {
	l.Error().Bool("infra", true).Err(err).Msg(msg)
}
