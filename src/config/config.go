// Package config resolves runtime settings from the environment, optionally seeded from a
// .env file. Command-line flags override these values in the shells.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/QianXiquq/RankingAnalyzer/src/archive"
	"github.com/QianXiquq/RankingAnalyzer/src/charts"
	"github.com/QianXiquq/RankingAnalyzer/src/records"
	"github.com/QianXiquq/RankingAnalyzer/src/store"
)

// Environment variable names.
const (
	EnvDataFile     = "RANK_DATA_FILE"
	EnvNotesFile    = "RANK_NOTES_FILE"
	EnvChartBackend = "RANK_CHART_BACKEND"
	EnvLogLevel     = "RANK_LOG_LEVEL"
	EnvArchiveDB    = "RANK_ARCHIVE_DB"
	EnvChartWidth   = "RANK_CHART_WIDTH"
	EnvChartHeight  = "RANK_CHART_HEIGHT"
	EnvAnnotate     = "RANK_ANNOTATE"
)

// DefaultDataFile is loaded at startup when it exists.
const DefaultDataFile = "data.csv"

// Config is the resolved runtime configuration.
type Config struct {
	DataFile     string
	NotesFile    string
	ChartBackend string
	LogLevel     string
	ArchiveDB    string
	ChartWidth   int
	ChartHeight  int
	Annotate     bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataFile:     DefaultDataFile,
		NotesFile:    store.DefaultNotesFile,
		ChartBackend: "gochart",
		LogLevel:     "info",
		ArchiveDB:    archive.DefaultPath,
		ChartWidth:   charts.DefaultWidth,
		ChartHeight:  charts.DefaultHeight,
		Annotate:     true,
	}
}

// Load reads envFiles (".env" when none given) into the process environment without
// overriding variables already set, then resolves Config. Missing env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, &records.IOError{Op: "load env", Path: f, Err: err}
		}
		records.Debugf("config: loaded %s", f)
	}
	return FromEnv(os.Getenv)
}

// FromEnv resolves Config through getenv; unset or blank variables keep their defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(EnvDataFile, &c.DataFile)
	str(EnvNotesFile, &c.NotesFile)
	str(EnvChartBackend, &c.ChartBackend)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvArchiveDB, &c.ArchiveDB)
	for _, p := range []struct {
		key string
		dst *int
	}{{EnvChartWidth, &c.ChartWidth}, {EnvChartHeight, &c.ChartHeight}} {
		v := strings.TrimSpace(getenv(p.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 10000 {
			return Config{}, fmt.Errorf("%s=%q: want a pixel size between 100 and 10000", p.key, v)
		}
		*p.dst = n
	}
	if v := strings.TrimSpace(getenv(EnvAnnotate)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s=%q: %w", EnvAnnotate, v, err)
		}
		c.Annotate = b
	}
	if _, err := records.ParseLogLevel(c.LogLevel); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	return c, nil
}

// Apply sets the process log level from c.
func (c Config) Apply() {
	records.SetLogLevel(c.LogLevel)
}

// ChartOptions returns the base chart options carried by c.
func (c Config) ChartOptions() charts.Options {
	return charts.Options{Width: c.ChartWidth, Height: c.ChartHeight, Annotate: c.Annotate}
}
