package main

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-callgate/engine"
	"github.com/wippyai/wasm-callgate/errors"
)

const envPrefix = "WASM_INVOKE"

// Config keys. Flags use the same names.
const (
	keyConfig           = "config"
	keyInterpreter      = "interpreter"
	keyMemoryLimitPages = "memory-limit-pages"
	keyWASI             = "wasi"
	keyLogLevel         = "log-level"
	keyMetrics          = "metrics"
	keyColor            = "color"
)

// settings is the resolved configuration of one command run.
type settings struct {
	LogLevel         string
	Color            string
	MemoryLimitPages uint32
	Interpreter      bool
	WASI             bool
	Metrics          bool
}

func addFlags(fs *pflag.FlagSet) {
	fs.String(keyConfig, "", "config file (default $HOME/.wasm-invoke/config.yaml)")
	fs.Bool(keyInterpreter, false, "use the wazero interpreter instead of the compiler")
	fs.Uint32(keyMemoryLimitPages, 0, "maximum memory pages per module (0 = wazero default)")
	fs.Bool(keyWASI, false, "provide WASI preview1 imports")
	fs.String(keyLogLevel, "warn", "log level: debug, info, warn or error")
	fs.Bool(keyMetrics, false, "print invocation counters after the call")
	fs.String(keyColor, "auto", "colored output: auto, always or never")
}

// loadSettings merges flags, environment and the config file.
func loadSettings(fs *pflag.FlagSet) (*settings, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "bind flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config "+path)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".wasm-invoke"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
		}
	}

	s := &settings{
		Interpreter:      v.GetBool(keyInterpreter),
		MemoryLimitPages: v.GetUint32(keyMemoryLimitPages),
		WASI:             v.GetBool(keyWASI),
		LogLevel:         v.GetString(keyLogLevel),
		Metrics:          v.GetBool(keyMetrics),
		Color:            v.GetString(keyColor),
	}
	switch s.Color {
	case "auto", "always", "never":
	default:
		return nil, errors.Config("color must be auto, always or never, got " + s.Color)
	}
	return s, nil
}

func (s *settings) engineConfig() *engine.Config {
	return &engine.Config{
		MemoryLimitPages: s.MemoryLimitPages,
		Interpreter:      s.Interpreter,
		EnableWASI:       s.WASI,
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
	}
}

// logger builds a console logger writing to stderr at the configured level.
func (s *settings) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, errors.Config("invalid log level " + s.LogLevel)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
