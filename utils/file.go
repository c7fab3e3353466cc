// Package utils contains small filesystem helpers shared by the launcher packages.
package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ResolveFile joins rel onto the module root, found from this source file's location. Tests use it
// to reach testdata without depending on their working directory.
func ResolveFile(rel string) string {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate utils/file.go")
	}
	root, err := filepath.Abs(filepath.Join(filepath.Dir(self), ".."))
	if err != nil {
		panic(err)
	}
	return filepath.Join(root, rel)
}

// RemoveFileNoError removes path and anything below it, ignoring failures.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error { return os.RemoveAll(path) })
}

// SafeJoinDir joins name onto dir and fails unless the result lies strictly inside dir. An arm type
// such as "../../etc/passwd" or "" is rejected this way.
func SafeJoinDir(dir, name string) (string, error) {
	joined := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return joined, errors.Errorf("%q escapes %s", name, dir)
	}
	return joined, nil
}
