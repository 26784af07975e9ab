// Package logging builds the process-wide structured logger.
package logging

import "go.uber.org/zap"

// New returns the logger for CLI commands: a terse production logger by
// default, a human-readable development logger when verbose is set. Output
// goes to stderr so command output on stdout stays machine-readable.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
