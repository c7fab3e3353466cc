package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/openarm/display/logging"
)

func TestFromReader(t *testing.T) {
	logger := logging.NewTestLogger(t)

	cfg, err := FromReader(context.Background(), "openarm.yaml", strings.NewReader(`
parameters:
  arm_type: v10
  bimanual: true
  ee_type: none
packages:
  - name: openarm_description
    path: /opt/openarm/share/openarm_description
prefixes: [/opt/ros/humble]
engine: command
xacro_command: /usr/bin/xacro
log_level: debug
`), logger)
	test.That(t, err, test.ShouldBeNil)

	expected := &Config{
		ConfigFilePath: "openarm.yaml",
		Parameters:     map[string]string{"arm_type": "v10", "bimanual": "true", "ee_type": "none"},
		Packages:       []PackageOverride{{Name: "openarm_description", Path: "/opt/openarm/share/openarm_description"}},
		Prefixes:       []string{"/opt/ros/humble"},
		Engine:         EngineCommand,
		XacroCommand:   "/usr/bin/xacro",
		LogLevel:       "debug",
	}
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
	test.That(t, cfg.PackageOverrides(), test.ShouldResemble,
		map[string]string{"openarm_description": "/opt/openarm/share/openarm_description"})
}

func TestFromReaderJSON(t *testing.T) {
	cfg, err := FromReader(context.Background(), "", strings.NewReader(`{"parameters": {"arm_type": 10, "bimanual": false}}`),
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Parameters, test.ShouldResemble, map[string]string{"arm_type": "10", "bimanual": "false"})
	test.That(t, cfg.Engine, test.ShouldEqual, EngineNative)
}

func TestFromReaderEmpty(t *testing.T) {
	cfg, err := FromReader(context.Background(), "", strings.NewReader(""), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, &Config{Engine: EngineNative, Parameters: map[string]string{}})
}

func TestFromReaderErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		input    string
		expected string
	}{
		{"malformed", "parameters: [", "failed to decode config"},
		{"unknown key", "colour: red", "colour"},
		{"missing package name", "packages:\n  - path: /tmp", `"name" is required`},
		{"missing package path", "packages:\n  - name: rviz2", `"path" is required`},
		{"unknown engine", "engine: docker", `unknown engine "docker"`},
		{"bad log level", "log_level: loud", "loud"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(context.Background(), "", strings.NewReader(tc.input), logging.NewTestLogger(t))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromReader(ctx, "", strings.NewReader(""), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestRead(t *testing.T) {
	t.Setenv("OPENARM_TEST_ARM", "v10")
	path := filepath.Join(t.TempDir(), "openarm.yaml")
	test.That(t, os.WriteFile(path, []byte("parameters:\n  arm_type: ${OPENARM_TEST_ARM}\n"), 0o600), test.ShouldBeNil)

	cfg, err := Read(context.Background(), path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Parameters["arm_type"], test.ShouldEqual, "v10")
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLaunchArguments(t *testing.T) {
	cfg := &Config{Parameters: map[string]string{"arm_type": "v10", "ee_type": "none"}}
	merged := cfg.LaunchArguments(
		map[string]string{"ee_type": "openarm_hand", "bimanual": "false"},
		map[string]string{"bimanual": "true"},
	)
	test.That(t, merged, test.ShouldResemble, map[string]string{
		"arm_type": "v10",
		"ee_type":  "openarm_hand",
		"bimanual": "true",
	})
	test.That(t, cfg.Parameters, test.ShouldResemble, map[string]string{"arm_type": "v10", "ee_type": "none"})
}
