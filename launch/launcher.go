package launch

import (
	"context"

	"github.com/pkg/errors"

	"github.com/openarm/display/logging"
)

// Launcher emits the process specs of the display launch.
type Launcher struct {
	packages PackageResolver
	resolver *DescriptionResolver
	logger   logging.Logger
}

// NewLauncher returns a Launcher resolving packages and templates with the given collaborators.
func NewLauncher(packages PackageResolver, engine TemplateEngine, logger logging.Logger) *Launcher {
	return &Launcher{
		packages: packages,
		resolver: NewDescriptionResolver(packages, engine, logger.Sublogger("description")),
		logger:   logger,
	}
}

// Resolver returns the launcher's description resolver.
func (l *Launcher) Resolver() *DescriptionResolver {
	return l.resolver
}

// Emit resolves the description and the RViz config and returns, in order, the
// robot_state_publisher, joint_state_publisher_gui and rviz2 specs. Nothing is returned if either
// resolution fails.
func (l *Launcher) Emit(ctx context.Context, params Parameters) ([]ProcessSpec, error) {
	description, err := l.resolver.Resolve(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "resolving robot description")
	}
	configPath, err := VisualizationConfigPath(l.packages, params.Bimanual)
	if err != nil {
		return nil, errors.Wrap(err, "resolving rviz config")
	}
	l.logger.Debugw("emitting process specs", "arm_type", params.ArmType, "rviz_config", configPath)

	return []ProcessSpec{
		robotStatePublisherSpec(description),
		jointStatePublisherGUISpec(),
		rvizSpec(configPath),
	}, nil
}
