// Package cmdlog wraps CLI commands with run/error metrics and a result log line.
package cmdlog

import (
	"time"

	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
)

func Run(log logging.Logger, cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		log.Error(cmd+"_error", logging.Err(err), logging.Duration("took", time.Since(start)))
	} else {
		log.Info(cmd+"_ok", logging.Duration("took", time.Since(start)))
	}
	return err
}
