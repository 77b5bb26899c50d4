// Package logging provides zap logger helpers for the site builder.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// ForSite returns a child logger carrying the site and spreadsheet identifiers.
// Empty identifiers are omitted.
func ForSite(logger *zap.Logger, siteID, spreadsheetID string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := make([]zap.Field, 0, 2)
	if siteID != "" {
		fields = append(fields, zap.String("site_id", siteID))
	}
	if spreadsheetID != "" {
		fields = append(fields, zap.String("spreadsheet_id", spreadsheetID))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
