package container

import (
	"fmt"

	"github.com/samber/do"
	"github.com/serroba/shortlink-go/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerPackage registers the process logger built from LOG_LEVEL and
// LOG_FORMAT.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*config.Options](i)

		level, err := zapcore.ParseLevel(options.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		var cfg zap.Config
		if options.LogFormat == "json" {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
		}

		cfg.Level = zap.NewAtomicLevelAt(level)

		return cfg.Build()
	})
}
