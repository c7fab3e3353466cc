package ament

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func registerPackage(t *testing.T, prefix, pkg string) string {
	t.Helper()
	markerDir := filepath.Join(prefix, packageResourceDir)
	test.That(t, os.MkdirAll(markerDir, 0o750), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(markerDir, pkg), nil, 0o600), test.ShouldBeNil)
	share := filepath.Join(prefix, shareDir, pkg)
	test.That(t, os.MkdirAll(share, 0o750), test.ShouldBeNil)
	return share
}

func TestShareDirectory(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	registerPackage(t, second, "openarm_description")
	firstRviz := registerPackage(t, first, "rviz2")
	registerPackage(t, second, "rviz2")

	idx := NewIndex([]string{first, "", second, first}, nil)
	test.That(t, idx.Prefixes(), test.ShouldResemble, []string{first, second})

	share, err := idx.ShareDirectory("openarm_description")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, share, test.ShouldEqual, filepath.Join(second, "share", "openarm_description"))

	// The first prefix registering a package wins.
	share, err = idx.ShareDirectory("rviz2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, share, test.ShouldEqual, firstRviz)
}

func TestShareDirectoryNotFound(t *testing.T) {
	prefix := t.TempDir()
	idx := NewIndex([]string{prefix}, nil)

	_, err := idx.ShareDirectory("openarm_description")
	test.That(t, err, test.ShouldNotBeNil)
	var notFound *PackageNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	test.That(t, notFound.Package, test.ShouldEqual, "openarm_description")
	test.That(t, notFound.Searched, test.ShouldResemble, []string{prefix})

	_, err = NewIndex(nil, nil).ShareDirectory("openarm_description")
	test.That(t, err.Error(), test.ShouldContainSubstring, PrefixPathEnvVar)

	_, err = idx.ShareDirectory("")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestShareDirectoryOverride(t *testing.T) {
	dev := t.TempDir()
	idx := NewIndex(nil, map[string]string{"openarm_description": dev})

	share, err := idx.ShareDirectory("openarm_description")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, share, test.ShouldEqual, dev)

	idx = NewIndex(nil, map[string]string{"openarm_description": filepath.Join(dev, "missing")})
	_, err = idx.ShareDirectory("openarm_description")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFromEnvironment(t *testing.T) {
	envPrefix := t.TempDir()
	extra := t.TempDir()
	registerPackage(t, envPrefix, "robot_state_publisher")
	t.Setenv(PrefixPathEnvVar, envPrefix)

	idx := FromEnvironment([]string{extra}, nil)
	test.That(t, idx.Prefixes(), test.ShouldResemble, []string{extra, envPrefix})

	share, err := idx.ShareDirectory("robot_state_publisher")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, share, test.ShouldEqual, filepath.Join(envPrefix, "share", "robot_state_publisher"))
}

func TestPackages(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	registerPackage(t, first, "rviz2")
	registerPackage(t, second, "openarm_description")
	registerPackage(t, second, "rviz2")

	idx := NewIndex([]string{first, second, t.TempDir()}, map[string]string{"local_pkg": t.TempDir()})
	names, err := idx.Packages()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldResemble, []string{"local_pkg", "openarm_description", "rviz2"})
}
