// Package rexec runs the nodes of a launch as supervised `ros2 run` processes on top of
// go.viam.com/utils/pexec.
package rexec

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils/pexec"

	"github.com/openarm/display/logging"
)

// StartAll starts configs in order under a new process manager. If one of them fails to start, the
// ones already running are stopped.
func StartAll(ctx context.Context, configs []pexec.ProcessConfig, logger logging.Logger) (pexec.ProcessManager, error) {
	pm := pexec.NewProcessManager(logger)
	// The manager keeps processes in a map and would start them in any order, so it is started
	// empty and every addition starts on its own.
	if err := pm.Start(ctx); err != nil {
		return nil, err
	}
	for _, config := range configs {
		if err := config.Validate("process"); err != nil {
			return nil, multierr.Combine(err, pm.Stop())
		}
		if _, err := pm.AddProcessFromConfig(ctx, config); err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "starting %s", config.ID), pm.Stop())
		}
		logger.Debugw("started", "id", config.ID, "args", config.Args)
	}
	return pm, nil
}
