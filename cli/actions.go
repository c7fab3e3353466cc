package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/openarm/display/launch"
	"github.com/openarm/display/rexec"
	"github.com/openarm/display/urdf"
	"github.com/openarm/display/utils"
)

const fileOutputPerm = 0o644

// ArgsAction prints the declared launch arguments and, when openarm_description can be found, the
// arm types it provides templates for.
func ArgsAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Argument", "Default", "Description"})
	for _, arg := range launch.DeclaredArguments() {
		def := arg.Default
		if arg.Required {
			def = "(required)"
		}
		t.AppendRow(table.Row{arg.Name, def, arg.Description})
	}
	printf(c.App.Writer, "%s", t.Render())

	armTypes, err := s.launcher.Resolver().ArmTypes()
	if err != nil {
		s.logger.Debugw("cannot list arm types", "error", err)
		infof(c.App.ErrWriter, "arm types are listed once %s can be found, see --prefix and --package", launch.DescriptionPackage)
		return nil
	}
	printf(c.App.Writer, "Available arm types: %s", strings.Join(armTypes, ", "))
	return nil
}

// DescribeAction prints the resolved robot description, or a summary of it.
func DescribeAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	params, err := s.parameters(c)
	if err != nil {
		return err
	}

	doc, err := s.launcher.Resolver().ResolveDocument(c.Context, params)
	if err != nil {
		return err
	}
	if c.Bool(collapseFlag) {
		var removed int
		if doc, removed, err = urdf.CollapseFixedJoints(doc); err != nil {
			return errors.Wrap(err, "collapsing fixed joints")
		}
		s.logger.Infof("collapsed %d fixed joints", removed)
	}

	text := doc.String()
	if c.Bool(summaryFlag) {
		robot, err := urdf.Parse(text)
		if err != nil {
			return err
		}
		if err := robot.Validate(); err != nil {
			warningf(c.App.ErrWriter, "%v", err)
		}
		text = robot.Summary()
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if path := c.String(outputFlag); path != "" {
		//nolint:gosec
		if err := os.WriteFile(path, []byte(text), fileOutputPerm); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		successf(c.App.ErrWriter, "wrote %s", path)
		return nil
	}
	//nolint:errcheck
	fmt.Fprint(c.App.Writer, text)
	return nil
}

// VizConfigAction prints the path of the RViz configuration the launch would use. Only bimanual
// affects the choice, so arm_type is not required.
func VizConfigAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	values, err := s.launchArguments(c)
	if err != nil {
		return err
	}
	if err := launch.CheckArguments(values); err != nil {
		return err
	}
	bimanual := launch.DefaultBimanual
	if v, ok := values[launch.BimanualArgument]; ok {
		bimanual = v
	}
	path, err := launch.VisualizationConfigPath(s.packages, bimanual)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", path)
	return nil
}

// EmitAction prints the process specs of the launch.
func EmitAction(c *cli.Context) error {
	format := c.String(formatFlag)
	if format != formatJSON && format != formatTable {
		return errors.Errorf("unknown format %q, expected %q or %q", format, formatJSON, formatTable)
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	params, err := s.parameters(c)
	if err != nil {
		return err
	}
	specs, err := s.launcher.Emit(c.Context, params)
	if err != nil {
		return err
	}

	if format == formatTable {
		printf(c.App.Writer, "%s", specsTable(specs))
		return nil
	}
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}

func specsTable(specs []launch.ProcessSpec) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Package", "Executable", "Output", "Arguments", "Parameters"})
	for i, spec := range specs {
		params := lo.Keys(spec.Parameters)
		sort.Strings(params)
		t.AppendRow(table.Row{
			i + 1, spec.Name, spec.Package, spec.Executable, spec.Output,
			strings.Join(spec.Arguments, " "), strings.Join(params, ", "),
		})
	}
	return t.Render()
}

// LaunchAction starts the launch's processes and stops them when interrupted.
func LaunchAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	params, err := s.parameters(c)
	if err != nil {
		return err
	}
	specs, err := s.launcher.Emit(c.Context, params)
	if err != nil {
		return err
	}

	runDir, err := rexec.NewRunDirectory(c.String(runDirFlag))
	if err != nil {
		return err
	}
	defer utils.RemoveFileNoError(runDir)
	logger := s.logger.Sublogger("rexec")
	configs, err := rexec.FromSpecs(specs, runDir, logger)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(configs))
	for i := range configs {
		configs[i].StopTimeout = c.Duration(stopTimeoutFlag)
		ids = append(ids, configs[i].ID)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	pm, err := rexec.StartAll(ctx, configs, logger)
	if err != nil {
		return err
	}
	// ErrWriter is shared with child output; write to it only through the logger from here on.
	s.logger.Infof("started %s, press Ctrl-C to stop", strings.Join(ids, ", "))

	<-ctx.Done()
	s.logger.Info("stopping")
	return pm.Stop()
}
