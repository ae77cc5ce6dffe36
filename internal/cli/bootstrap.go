package cli

import (
	"fmt"
	"strconv"
	"taskreward-backend/config"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/services"
	"taskreward-backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// Bootstrap loads configuration and opens the connections every command
// needs. Tests replace it to run against an in-memory database.
var Bootstrap = connect

func connect(opts *RootOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFilename,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if _, err := database.Connect(cfg); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := database.ConnectRedis(cfg); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	services.Configure(cfg)

	opts.Config = cfg
	return nil
}

func parseID(kind, s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s id %q", services.ErrInvalidInput, kind, s)
	}
	return uint(id), nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", services.ErrInvalidInput, s)
	}
	return amount, nil
}
