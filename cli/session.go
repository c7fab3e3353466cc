package cli

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/openarm/display/ament"
	"github.com/openarm/display/config"
	"github.com/openarm/display/launch"
	"github.com/openarm/display/logging"
	"github.com/openarm/display/xacro"
)

const launchArgSeparator = ":="

// session is everything a command needs, built from the global flags and the config file.
type session struct {
	cfg      *config.Config
	logger   logging.Logger
	packages *ament.Index
	launcher *launch.Launcher
}

func newSession(c *cli.Context) (*session, error) {
	logger := logging.NewBlankLogger(c.App.Name)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(logging.INFO)

	cfg := config.Default()
	if path := c.String(configFlag); path != "" {
		var err error
		if cfg, err = config.Read(c.Context, path, logger); err != nil {
			return nil, err
		}
	}
	switch {
	case c.Bool(debugFlag):
		logger.SetLevel(logging.DEBUG)
	case cfg.LogLevel != "":
		level, err := logging.LevelFromString(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}

	overrides := cfg.PackageOverrides()
	flagOverrides, err := parseAssignments(c.StringSlice(packageFlag), "=", packageFlag)
	if err != nil {
		return nil, err
	}
	for name, path := range flagOverrides {
		overrides[name] = path
	}
	prefixes := append(append([]string{}, c.StringSlice(prefixFlag)...), cfg.Prefixes...)
	packages := ament.FromEnvironment(prefixes, overrides)
	logger.Debugw("package index", "prefixes", packages.Prefixes(), "overrides", overrides)

	engineName := cfg.Engine
	if c.IsSet(engineFlag) {
		engineName = c.String(engineFlag)
	}
	engine, err := newEngine(engineName, cfg.XacroCommand, packages, logger)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		packages: packages,
		launcher: launch.NewLauncher(packages, engine, logger),
	}, nil
}

func newEngine(name, command string, packages *ament.Index, logger logging.Logger) (launch.TemplateEngine, error) {
	switch name {
	case "", config.EngineNative:
		return xacro.NewProcessor(packages, logger.Sublogger("xacro")), nil
	case config.EngineCommand:
		return xacro.NewCommandEngine(command, logger.Sublogger("xacro")), nil
	default:
		return nil, errors.Errorf("unknown engine %q, expected %q or %q", name, config.EngineNative, config.EngineCommand)
	}
}

// launchArguments merges the config file's parameters, --set flags and `name:=value` arguments,
// in increasing precedence.
func (s *session) launchArguments(c *cli.Context) (map[string]string, error) {
	set, err := parseAssignments(c.StringSlice(setFlag), "=", setFlag)
	if err != nil {
		return nil, err
	}
	positional, err := parseLaunchArguments(c.Args().Slice())
	if err != nil {
		return nil, err
	}
	return s.cfg.LaunchArguments(set, positional), nil
}

func (s *session) parameters(c *cli.Context) (launch.Parameters, error) {
	values, err := s.launchArguments(c)
	if err != nil {
		return launch.Parameters{}, err
	}
	params, err := launch.ParametersFromMap(values)
	if err != nil {
		return launch.Parameters{}, err
	}
	s.logger.Debugw("launch arguments", "arm_type", params.ArmType, "ee_type", params.EndEffector, "bimanual", params.Bimanual)
	return params, nil
}

// parseLaunchArguments parses ROS style `name:=value` arguments. Values are kept verbatim.
func parseLaunchArguments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, launchArgSeparator)
		if !ok || name == "" {
			return nil, errors.Errorf("invalid launch argument %q, expected name:=value", arg)
		}
		values[name] = value
	}
	return values, nil
}

func parseAssignments(assignments []string, sep, flag string) (map[string]string, error) {
	values := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		name, value, ok := strings.Cut(assignment, sep)
		if !ok || name == "" {
			return nil, errors.Errorf("invalid --%s value %q, expected NAME%sVALUE", flag, assignment, sep)
		}
		values[name] = value
	}
	return values, nil
}
