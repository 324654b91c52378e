// Package common provides shared dependency construction for command
// implementations.
package common

import (
	"fmt"

	"github.com/counselrank/audit-service/internal/config"
	"github.com/counselrank/audit-service/internal/logger"
)

// ConfigFile holds the path passed via the --config persistent flag.
var ConfigFile string

// Debug enables debug logging for all commands.
var Debug bool

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps loads configuration and builds the logger shared by
// every command, honoring the --config and --debug flags.
func NewCommandDeps() (*CommandDeps, error) {
	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.LoggerSettings()
	if Debug || cfg.App.Debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	deps := &CommandDeps{
		Config: cfg,
		Logger: log,
	}

	if validateErr := deps.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}
