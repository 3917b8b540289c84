package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options control the global logger. Logs always go to stderr so stdout stays
// clean for credential_process output and the function response.
type Options struct {
	Verbose bool
	Format  string
	NoColor bool
	Out     io.Writer
}

// New builds a logger from opts.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	if strings.EqualFold(opts.Format, FormatJSON) {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    opts.NoColor,
		TimeFormat: time.Kitchen,
	}).Level(level).With().Timestamp().Logger()
}

// Init replaces the global logger.
func Init(opts Options) {
	log.Logger = New(opts)
}

// InitDefault sets up a pre-flag logger so anything logged before the flags are
// parsed still has a sane format.
func InitDefault() {
	Init(Options{})
}
