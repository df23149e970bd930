// Package logging builds the operator logger used by resetd.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New returns a zap logger. Format "json" selects the production encoder,
// anything else the development console encoder. An unparsable level falls
// back to info.
func New(level, format string, fields map[string]interface{}) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl
	cfg.InitialFields = fields

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
