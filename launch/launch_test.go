package launch

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/openarm/display/ament"
	"github.com/openarm/display/logging"
	"github.com/openarm/display/testutils"
	"github.com/openarm/display/urdf"
	"github.com/openarm/display/xacro"
)

func newTestLauncher(t *testing.T) *Launcher {
	t.Helper()
	index := testutils.DescriptionIndex()
	logger := logging.NewTestLogger(t)
	return NewLauncher(index, xacro.NewProcessor(index, logger), logger)
}

func linkNames(t *testing.T, description string) []string {
	t.Helper()
	robot, err := urdf.Parse(description)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, robot.Validate(), test.ShouldBeNil)
	names := make([]string, 0, len(robot.Links))
	for _, link := range robot.Links {
		names = append(names, link.Name)
	}
	return names
}

func TestParametersFromMap(t *testing.T) {
	params, err := ParametersFromMap(map[string]string{ArmTypeArgument: "v10"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params, test.ShouldResemble, Parameters{ArmType: "v10", EndEffector: "openarm_hand", Bimanual: "false"})

	params, err = ParametersFromMap(map[string]string{"arm_type": "v10", "ee_type": "none", "bimanual": "True"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Mappings(), test.ShouldResemble, map[string]string{
		"arm_type": "v10",
		"ee_type":  "none",
		"bimanual": "True",
	})

	_, err = ParametersFromMap(map[string]string{"ee_type": "none"})
	var missing *MissingArgumentError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Name, test.ShouldEqual, ArmTypeArgument)

	_, err = ParametersFromMap(map[string]string{"arm_type": ""})
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)

	_, err = ParametersFromMap(map[string]string{"arm_type": "v10", "use_sim": "true", "arm": "x"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown launch arguments [arm, use_sim]")

	test.That(t, CheckArguments(map[string]string{"bimanual": "true"}), test.ShouldBeNil)
	err = CheckArguments(map[string]string{"bimanual": "true", "bimanul": "true"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown launch arguments [bimanul]")
}

func TestDeclaredArguments(t *testing.T) {
	args := DeclaredArguments()
	test.That(t, len(args), test.ShouldEqual, 3)
	test.That(t, args[0].Name, test.ShouldEqual, "arm_type")
	test.That(t, args[0].Required, test.ShouldBeTrue)
	test.That(t, args[1].Default, test.ShouldEqual, "openarm_hand")
	test.That(t, args[2].Default, test.ShouldEqual, "false")

	args[0].Name = "changed"
	test.That(t, DeclaredArguments()[0].Name, test.ShouldEqual, "arm_type")
}

func TestSelectVisualizationConfig(t *testing.T) {
	for _, value := range []string{"true", "True", "TRUE", "tRuE"} {
		test.That(t, SelectVisualizationConfig(value), test.ShouldEqual, "bimanual.rviz")
	}
	for _, value := range []string{"false", "", "True ", " true", "yes", "1", "t", "truee"} {
		test.That(t, SelectVisualizationConfig(value), test.ShouldEqual, "arm_only.rviz")
	}
}

func TestVisualizationConfigPath(t *testing.T) {
	path, err := VisualizationConfigPath(testutils.DescriptionIndex(), "true")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join(testutils.DescriptionShare(), "rviz", "bimanual.rviz"))

	// the file does not have to exist
	index := ament.NewIndex(nil, map[string]string{DescriptionPackage: t.TempDir()})
	path, err = VisualizationConfigPath(index, "no")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(path), test.ShouldEqual, "arm_only.rviz")

	_, err = VisualizationConfigPath(ament.NewIndex(nil, nil), "true")
	var notFound *ament.PackageNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
}

func TestTemplatePath(t *testing.T) {
	resolver := newTestLauncher(t).Resolver()

	path, err := resolver.TemplatePath("v10")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path, test.ShouldEqual, filepath.Join(testutils.DescriptionShare(), "urdf", "robot", "v10.urdf.xacro"))

	types, err := resolver.ArmTypes()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, types, test.ShouldResemble, []string{"v10"})

	_, err = resolver.TemplatePath("unknown_model")
	test.That(t, errors.Is(err, fs.ErrNotExist), test.ShouldBeTrue)
	var notFound *TemplateNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	test.That(t, notFound.ArmType, test.ShouldEqual, "unknown_model")
	test.That(t, notFound.Available, test.ShouldResemble, []string{"v10"})
	test.That(t, err.Error(), test.ShouldContainSubstring, "(available: v10)")

	_, err = resolver.TemplatePath("../../../../etc/passwd")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid arm type")

	_, err = resolver.TemplatePath("")
	var missing *MissingArgumentError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
}

func TestResolve(t *testing.T) {
	resolver := newTestLauncher(t).Resolver()
	params := Parameters{ArmType: "v10", EndEffector: "openarm_hand", Bimanual: "false"}

	first, err := resolver.Resolve(context.Background(), params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasPrefix(first, "<?xml version=\"1.0\" ?>\n<robot name=\"openarm\">\n  <link name=\"world\"/>\n"), test.ShouldBeTrue)
	test.That(t, first, test.ShouldContainSubstring, `<param name="ee_type">openarm_hand</param>`)
	test.That(t, first, test.ShouldContainSubstring, `<param name="bimanual">false</param>`)
	test.That(t, first, test.ShouldNotContainSubstring, "xacro")

	second, err := resolver.Resolve(context.Background(), params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldEqual, first)

	test.That(t, linkNames(t, first), test.ShouldResemble, []string{
		"world", "base_link", "link1", "link2", "hand", "left_finger", "right_finger",
	})

	robot, err := urdf.Parse(first)
	test.That(t, err, test.ShouldBeNil)
	joint2 := robot.Joints[2]
	test.That(t, joint2.Name, test.ShouldEqual, "joint2")
	test.That(t, joint2.Limit.Lower, test.ShouldEqual, "0")
	test.That(t, strings.HasPrefix(joint2.Limit.Upper, "2.61799"), test.ShouldBeTrue)
	test.That(t, robot.Joints[1].Limit.Lower, test.ShouldEqual, "-1.5707963267948966")
	test.That(t, robot.Joints[1].Limit.Effort, test.ShouldEqual, "40")
}

type recordingEngine struct {
	path     string
	mappings map[string]string
}

func (e *recordingEngine) Process(ctx context.Context, path string, mappings map[string]string) (*xacro.Document, error) {
	e.path = path
	e.mappings = mappings
	return &xacro.Document{Root: &xacro.Element{Name: "robot"}}, nil
}

func TestResolvePassesValuesVerbatim(t *testing.T) {
	engine := &recordingEngine{}
	index := testutils.DescriptionIndex()
	resolver := NewDescriptionResolver(index, engine, logging.NewTestLogger(t))

	description, err := resolver.Resolve(context.Background(), Parameters{ArmType: "v10", EndEffector: " Odd Hand ", Bimanual: "TRUE "})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, description, test.ShouldEqual, "<?xml version=\"1.0\" ?>\n<robot/>\n")
	test.That(t, filepath.Base(engine.path), test.ShouldEqual, "v10.urdf.xacro")
	test.That(t, engine.mappings, test.ShouldResemble, map[string]string{
		"arm_type": "v10",
		"ee_type":  " Odd Hand ",
		"bimanual": "TRUE ",
	})
}

func TestEmit(t *testing.T) {
	launcher := newTestLauncher(t)
	share := testutils.DescriptionShare()

	t.Run("bimanual with hand", func(t *testing.T) {
		specs, err := launcher.Emit(context.Background(), Parameters{ArmType: "v10", EndEffector: "openarm_hand", Bimanual: "true"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(specs), test.ShouldEqual, 3)

		rsp := specs[0]
		test.That(t, rsp.Package, test.ShouldEqual, "robot_state_publisher")
		test.That(t, rsp.Executable, test.ShouldEqual, "robot_state_publisher")
		test.That(t, rsp.Name, test.ShouldEqual, "robot_state_publisher")
		test.That(t, rsp.Output, test.ShouldEqual, OutputScreen)
		test.That(t, rsp.Arguments, test.ShouldBeEmpty)
		description := rsp.Parameters[RobotDescriptionParameter]
		test.That(t, description, test.ShouldContainSubstring, `<param name="ee_type">openarm_hand</param>`)
		test.That(t, description, test.ShouldContainSubstring, `<param name="bimanual">true</param>`)
		links := linkNames(t, description)
		test.That(t, links, test.ShouldContain, "left_hand")
		test.That(t, links, test.ShouldContain, "right_right_finger")
		test.That(t, links, test.ShouldNotContain, "base_link")

		test.That(t, specs[1], test.ShouldResemble, ProcessSpec{
			Package:    "joint_state_publisher_gui",
			Executable: "joint_state_publisher_gui",
			Name:       "joint_state_publisher_gui",
			Output:     OutputLog,
		})
		test.That(t, specs[2], test.ShouldResemble, ProcessSpec{
			Package:    "rviz2",
			Executable: "rviz2",
			Name:       "rviz2",
			Arguments:  []string{"--display-config", filepath.Join(share, "rviz", "bimanual.rviz")},
			Output:     OutputScreen,
		})
	})

	t.Run("single arm without end effector", func(t *testing.T) {
		params, err := ParametersFromMap(map[string]string{"arm_type": "v10", "ee_type": "none"})
		test.That(t, err, test.ShouldBeNil)
		specs, err := launcher.Emit(context.Background(), params)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(specs), test.ShouldEqual, 3)

		description := specs[0].Parameters[RobotDescriptionParameter]
		test.That(t, description, test.ShouldContainSubstring, `<param name="ee_type">none</param>`)
		test.That(t, linkNames(t, description), test.ShouldResemble, []string{"world", "base_link", "link1", "link2"})
		test.That(t, specs[2].Arguments, test.ShouldResemble, []string{"--display-config", filepath.Join(share, "rviz", "arm_only.rviz")})
	})

	t.Run("unknown arm type", func(t *testing.T) {
		specs, err := launcher.Emit(context.Background(), Parameters{ArmType: "unknown_model", EndEffector: "openarm_hand", Bimanual: "false"})
		test.That(t, specs, test.ShouldBeNil)
		test.That(t, errors.Is(err, fs.ErrNotExist), test.ShouldBeTrue)
	})

	t.Run("missing description package", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		empty := ament.NewIndex([]string{t.TempDir()}, nil)
		specs, err := NewLauncher(empty, xacro.NewProcessor(empty, logger), logger).Emit(context.Background(),
			Parameters{ArmType: "v10", EndEffector: "openarm_hand", Bimanual: "false"})
		test.That(t, specs, test.ShouldBeNil)
		var notFound *ament.PackageNotFoundError
		test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	})

	t.Run("template failure", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		share := t.TempDir()
		testutils.WriteFile(t, share, "urdf/robot/broken.urdf.xacro", `<robot><link name="$(arg nope)"/></robot>`)
		index := ament.NewIndex(nil, map[string]string{DescriptionPackage: share})
		specs, err := NewLauncher(index, xacro.NewProcessor(index, logger), logger).Emit(context.Background(),
			Parameters{ArmType: "broken", EndEffector: "openarm_hand", Bimanual: "false"})
		test.That(t, specs, test.ShouldBeNil)
		var undefined *xacro.UndefinedArgumentError
		test.That(t, errors.As(err, &undefined), test.ShouldBeTrue)
	})
}

func TestProcessSpecCopy(t *testing.T) {
	spec := rvizSpec("/tmp/a.rviz")
	spec.Parameters = map[string]string{"k": "v"}
	copied := spec.Copy()
	copied.Arguments[1] = "/tmp/b.rviz"
	copied.Parameters["k"] = "changed"
	test.That(t, spec.Arguments[1], test.ShouldEqual, "/tmp/a.rviz")
	test.That(t, spec.Parameters["k"], test.ShouldEqual, "v")
	test.That(t, spec.String(), test.ShouldEqual, "rviz2/rviz2 (rviz2) --display-config /tmp/a.rviz")
}
