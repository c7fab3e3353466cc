package utils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestResolveFile(t *testing.T) {
	sentinel := ResolveFile("utils/file.go")
	_, err := os.Stat(sentinel)
	test.That(t, err, test.ShouldBeNil)
}

func TestSafeJoinDir(t *testing.T) {
	parent := filepath.Join("share", "urdf", "robot")

	joined, err := SafeJoinDir(parent, "v10.urdf.xacro")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joined, test.ShouldEqual, filepath.Join(parent, "v10.urdf.xacro"))

	_, err = SafeJoinDir(parent, "../../etc/passwd")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = SafeJoinDir(parent, "")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRemoveFileNoError(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "params")
	test.That(t, os.MkdirAll(nested, 0o750), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(nested, "a.yaml"), []byte("a: 1"), 0o600), test.ShouldBeNil)

	RemoveFileNoError(nested)
	_, err := os.Stat(nested)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	// Removing something that is already gone is a no-op.
	RemoveFileNoError(nested)
}
