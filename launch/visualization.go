package launch

import (
	"path/filepath"
	"strings"
)

// RViz configuration files shipped in the description package's rviz directory.
const (
	BimanualVisualizationConfig = "bimanual.rviz"
	ArmOnlyVisualizationConfig  = "arm_only.rviz"

	visualizationDir = "rviz"
)

// SelectVisualizationConfig returns the RViz config for the bimanual argument. Only a
// case-insensitive "true" selects the bimanual config; every other value, including malformed
// ones, selects the single arm config.
func SelectVisualizationConfig(bimanual string) string {
	if strings.ToLower(bimanual) == "true" {
		return BimanualVisualizationConfig
	}
	return ArmOnlyVisualizationConfig
}

// VisualizationConfigPath returns the path of the selected RViz config. The file is not required to
// exist.
func VisualizationConfigPath(packages PackageResolver, bimanual string) (string, error) {
	share, err := packages.ShareDirectory(DescriptionPackage)
	if err != nil {
		return "", err
	}
	return filepath.Join(share, visualizationDir, SelectVisualizationConfig(bimanual)), nil
}
