package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	FormatText        = "text"
	FormatJson        = "json"
	FormatCommandLine = "commandline"
)

var formatters = map[string]func() log.Formatter{
	FormatText:        func() log.Formatter { return &log.TextFormatter{ForceColors: true, FullTimestamp: true} },
	FormatJson:        func() log.Formatter { return &log.JSONFormatter{} },
	FormatCommandLine: func() log.Formatter { return &CommandLineFormatter{} },
}

// ConfigureLogging sets up logging for long-running commands: full timestamps on stdout, plus a
// Prometheus hook counting log lines per level.
func ConfigureLogging() {
	log.SetFormatter(formatters[FormatText]())
	log.SetOutput(os.Stdout)
	registerPrometheusHook()
}

// ConfigureCommandLineLogging sets up logging for one-shot commands where only the message matters.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&CommandLineFormatter{})
	log.SetOutput(os.Stdout)
}

// SetFormat switches the global formatter by name.
func SetFormat(name string) error {
	newFormatter, ok := formatters[strings.ToLower(name)]
	if !ok {
		names := maps.Keys(formatters)
		slices.Sort(names)
		return errors.Errorf("unknown log format %q, expected one of %v", name, names)
	}
	log.SetFormatter(newFormatter())
	return nil
}

// SetOutput redirects the global logger, e.g. to a test buffer.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

var promrusHookRegistered bool

func registerPrometheusHook() {
	if promrusHookRegistered {
		return
	}
	hook, err := promrus.NewPrometheusHook()
	if err != nil {
		log.Warnf("could not register log metrics: %v", err)
		return
	}
	log.AddHook(hook)
	promrusHookRegistered = true
}
