// Package ament resolves ROS 2 package share directories through the ament resource index.
//
// An installed package registers itself by creating an empty marker file at
// <prefix>/share/ament_index/resource_index/packages/<package>; its share directory is then
// <prefix>/share/<package>.
package ament

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	// PrefixPathEnvVar lists install prefixes in search order, separated by os.PathListSeparator.
	PrefixPathEnvVar = "AMENT_PREFIX_PATH"

	shareDir           = "share"
	packageResourceDir = "share/ament_index/resource_index/packages"
)

// PackageNotFoundError is returned when no prefix registers the requested package.
type PackageNotFoundError struct {
	Package  string
	Searched []string
}

// NewPackageNotFoundError returns an error for a package missing from every searched prefix.
func NewPackageNotFoundError(pkg string, searched []string) error {
	return &PackageNotFoundError{Package: pkg, Searched: searched}
}

func (e *PackageNotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return "package '" + e.Package + "' not found: no ament prefixes configured (is " + PrefixPathEnvVar + " set?)"
	}
	return "package '" + e.Package + "' not found, searching: [" + strings.Join(e.Searched, ", ") + "]"
}

// Index looks up package share directories. Overrides take precedence over the prefixes.
type Index struct {
	prefixes  []string
	overrides map[string]string
}

// NewIndex returns an index over the given prefixes, searched in order.
func NewIndex(prefixes []string, overrides map[string]string) *Index {
	cleaned := lo.Uniq(lo.FilterMap(prefixes, func(prefix string, _ int) (string, bool) {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			return "", false
		}
		return filepath.Clean(prefix), true
	}))
	copied := make(map[string]string, len(overrides))
	for name, path := range overrides {
		copied[name] = path
	}
	return &Index{prefixes: cleaned, overrides: copied}
}

// FromEnvironment returns an index searching extraPrefixes first and then every prefix listed in
// AMENT_PREFIX_PATH.
func FromEnvironment(extraPrefixes []string, overrides map[string]string) *Index {
	prefixes := append([]string{}, extraPrefixes...)
	if env := os.Getenv(PrefixPathEnvVar); env != "" {
		prefixes = append(prefixes, filepath.SplitList(env)...)
	}
	return NewIndex(prefixes, overrides)
}

// Prefixes returns the install prefixes in search order.
func (idx *Index) Prefixes() []string {
	return append([]string{}, idx.prefixes...)
}

// ShareDirectory returns the share directory of the named package.
func (idx *Index) ShareDirectory(pkg string) (string, error) {
	if pkg == "" {
		return "", errors.New("package name must not be empty")
	}
	if path, ok := idx.overrides[pkg]; ok {
		info, err := os.Stat(path)
		if err != nil {
			return "", errors.Wrapf(err, "share directory override for package '%s'", pkg)
		}
		if !info.IsDir() {
			return "", errors.Errorf("share directory override for package '%s' is not a directory: %s", pkg, path)
		}
		return path, nil
	}

	for _, prefix := range idx.prefixes {
		marker := filepath.Join(prefix, packageResourceDir, pkg)
		if info, err := os.Stat(marker); err == nil && !info.IsDir() {
			return filepath.Join(prefix, shareDir, pkg), nil
		}
	}
	return "", NewPackageNotFoundError(pkg, idx.Prefixes())
}

// Packages returns the sorted names of every package registered in any prefix or override.
func (idx *Index) Packages() ([]string, error) {
	names := lo.Keys(idx.overrides)
	for _, prefix := range idx.prefixes {
		entries, err := os.ReadDir(filepath.Join(prefix, packageResourceDir))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading resource index of prefix %s", prefix)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
	}
	names = lo.Uniq(names)
	sort.Strings(names)
	return names, nil
}
