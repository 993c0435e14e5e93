package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap logger appropriate for the environment: human-readable
// output in dev, JSON in production.
func New(env string) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if env == "dev" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return log, nil
}
