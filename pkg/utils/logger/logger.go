package logger

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var Logger *zap.Logger

func initLogger() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on process environment")
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Caller().Logger()

	debug := flag.Bool("debug", false, "sets log level to debug")
	trace := flag.Bool("trace", false, "sets log level to trace")
	info := flag.Bool("info", false, "sets log level to info (default)")
	flag.Parse()

	// Set default to Info level
	logLevel := zerolog.InfoLevel

	if *debug {
		logLevel = zerolog.DebugLevel
	} else if *trace {
		logLevel = zerolog.TraceLevel
	} else if *info {
		logLevel = zerolog.InfoLevel
	}

	// Apply the log level globally
	zerolog.SetGlobalLevel(logLevel)

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build zap logger")
	}
	Logger = zl
}

// Init initializes the logger with the configuration from the environment
// and command line flags.
// It sets up the global logger to use zerolog with console output.
// Example usage:
//
//	logger.Init() <- inside whichever main() function in your entrypoint
//
// Then, `go run cmd/kgeval/main.go --debug`
func Init() {
	initLogger()
}

// Sugar returns a sugared logger for easier use
func Sugar() *zap.SugaredLogger {
	return Logger.Sugar()
}
