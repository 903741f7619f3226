package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	File         string `split_words:"true"`
	MaxSizeMB    int    `envconfig:"MAX_SIZE_MB" default:"50"`
	MaxBackups   int    `split_words:"true" default:"3"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
	MaxSizeMB:    50,
	MaxBackups:   3,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

func Init(opts ...Config) {
	conf := safe(opts...)

	var out io.Writer = os.Stdout
	if conf.PrettyFormat {
		out = zerolog.NewConsoleWriter()
	}
	if fw := fileWriter(conf); fw != nil {
		out = io.MultiWriter(out, fw)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()

	// zerolog.Ctx falls back to the global logger for contexts without one.
	zerolog.DefaultContextLogger = &log.Logger
}

// fileWriter returns a rotating JSON sink, or nil when no file is configured.
func fileWriter(conf *Config) io.Writer {
	if conf.File == "" {
		return nil
	}
	size := conf.MaxSizeMB
	if size <= 0 {
		size = DefaultConfig.MaxSizeMB
	}
	return &lumberjack.Logger{
		Filename:   conf.File,
		MaxSize:    size,
		MaxBackups: conf.MaxBackups,
		Compress:   true,
	}
}
