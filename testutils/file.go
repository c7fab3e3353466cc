// Package testutils provides fixtures shared by the launcher tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/openarm/display/ament"
	"github.com/openarm/display/utils"
)

// WriteFile writes contents to name under dir, creating parent directories, and returns the path.
func WriteFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, os.MkdirAll(filepath.Dir(path), 0o755), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

// AmentPrefix returns the install prefix checked in under testdata, which provides
// openarm_description with a v10 template and both RViz configs.
func AmentPrefix() string {
	return utils.ResolveFile("testdata/ament")
}

// DescriptionIndex returns a package index over AmentPrefix only.
func DescriptionIndex() *ament.Index {
	return ament.NewIndex([]string{AmentPrefix()}, nil)
}

// DescriptionShare returns the share directory of openarm_description under AmentPrefix.
func DescriptionShare() string {
	return filepath.Join(AmentPrefix(), "share", "openarm_description")
}
