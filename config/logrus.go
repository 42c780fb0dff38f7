package config

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logLevelFromEnv())
	logg.SetOutput(os.Stdout)

	if hook := newSuppressionHook(os.Getenv("LOG_SUPPRESS_PATTERNS")); hook != nil {
		logg.AddHook(hook)
	}
}

func logLevelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		return logrus.ErrorLevel
	}
	return lvl
}

// suppressionHook drops entries whose message matches a configured
// pattern. Replaces the old process-wide console override that was used
// to filter vendor noise: suppression is now scoped to this logger and
// configured per deployment via LOG_SUPPRESS_PATTERNS (comma-separated
// regexes).
type suppressionHook struct {
	patterns []*regexp.Regexp
}

func newSuppressionHook(raw string) *suppressionHook {
	var patterns []*regexp.Regexp
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		patterns = append(patterns, re)
	}
	if len(patterns) == 0 {
		return nil
	}
	return &suppressionHook{patterns: patterns}
}

func (h *suppressionHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *suppressionHook) Fire(entry *logrus.Entry) error {
	for _, re := range h.patterns {
		if re.MatchString(entry.Message) {
			// logrus hooks cannot drop an entry outright; pointing the
			// entry at a discard logger before the write stage has the
			// same effect.
			entry.Logger = discardLogger
			return nil
		}
	}
	return nil
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}
