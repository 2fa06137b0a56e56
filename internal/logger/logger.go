// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "marginalia"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Axiom
	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var (
	global zerolog.Logger
	shipper *batcher
)

// Init wires stdout (JSON or console), an optional rotating file and
// optional Axiom forwarding into the global logger.
func Init(opts Options) error {
	Close()

	var writers []io.Writer
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		writers = append(writers, os.Stdout)
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		sink, err := newAxiomSink(opts.AxiomAPIKey, opts.AxiomOrgID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "axiom forwarding disabled: %v\n", err)
		} else {
			dataset := opts.AxiomDataset
			if dataset == "" {
				dataset = "dev_" + serviceName
			}
			shipper = newBatcher(sink, dataset, opts.AxiomFlush)
			writers = append(writers, &forwarder{b: shipper, min: zerolog.InfoLevel})
		}
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	global = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Str("service", serviceName).
		Logger()
	log.Logger = global
	return nil
}

// Close drains pending Axiom events. Safe to call more than once.
func Close() {
	if shipper != nil {
		shipper.Close()
		shipper = nil
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }
