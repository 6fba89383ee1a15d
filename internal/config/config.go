// Package config loads analyzer settings and the hash database of overflow
// prone functions.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
	"github.com/sirkon/sizeoverflow/internal/expand"
	"github.com/sirkon/sizeoverflow/internal/lto"
)

// Config of the analyzer.
type Config struct {
	LogLevel     logrus.Level `yaml:"log-level"`
	Diagnostics  Diagnostics  `yaml:"diagnostics"`
	MergePolicy  lto.Policy   `yaml:"merge-policy"`
	ReportFunc   string       `yaml:"report-func"`
	HashDatabase []HashEntry  `yaml:"hash-database"`
}

// HashEntry lists interesting slots of a function. Slot 0 is the return value.
type HashEntry struct {
	Function string `yaml:"function"`
	Params   []int  `yaml:"params"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel:    logrus.WarnLevel,
		Diagnostics: DiagnosticsMisses,
		MergePolicy: lto.SuppressedWins,
		ReportFunc:  expand.DefaultReportFunc,
	}
}

// Load reads the configuration file. An empty path gives the default one.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes the configuration over the defaults. Unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if cfg.ReportFunc == "" {
		cfg.ReportFunc = expand.DefaultReportFunc
	}
	for i, e := range cfg.HashDatabase {
		if e.Function == "" {
			return nil, fmt.Errorf("hash database entry %d has no function", i)
		}
		for _, slot := range e.Params {
			if slot < 0 || slot > cloneargs.MaxParam {
				return nil, fmt.Errorf("hash database entry %s: slot %d out of range", e.Function, slot)
			}
		}
	}
	return cfg, nil
}

// Logger builds the logger all engine parts report through.
func (c *Config) Logger(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(c.LogLevel)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return log
}

// Database builds the hash database from the predefined and configured entries.
func (c *Config) Database() *Database {
	return NewDatabase(c.HashDatabase)
}
