package launch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/openarm/display/logging"
	"github.com/openarm/display/utils"
	"github.com/openarm/display/xacro"
)

const (
	// DescriptionPackage is the package holding the description templates and RViz configs.
	DescriptionPackage = "openarm_description"

	// TemplateExtension is the file extension of description templates.
	TemplateExtension = ".urdf.xacro"

	templatesDir = "urdf"
	robotDir     = "robot"
)

// PackageResolver finds the share directory of an installed package.
type PackageResolver interface {
	ShareDirectory(pkg string) (string, error)
}

// TemplateEngine expands a template file with the given slot values.
type TemplateEngine interface {
	Process(ctx context.Context, path string, mappings map[string]string) (*xacro.Document, error)
}

// DescriptionResolver produces the robot description for a set of launch parameters. It keeps no
// state between calls; every resolution reads the template again.
type DescriptionResolver struct {
	packages PackageResolver
	engine   TemplateEngine
	logger   logging.Logger
}

// NewDescriptionResolver returns a resolver reading templates from the description package.
func NewDescriptionResolver(packages PackageResolver, engine TemplateEngine, logger logging.Logger) *DescriptionResolver {
	return &DescriptionResolver{packages: packages, engine: engine, logger: logger}
}

func (r *DescriptionResolver) robotTemplatesDir() (string, error) {
	share, err := r.packages.ShareDirectory(DescriptionPackage)
	if err != nil {
		return "", err
	}
	return filepath.Join(share, templatesDir, robotDir), nil
}

// TemplatePath returns the template path for an arm type, failing with a TemplateNotFoundError
// when the file does not exist.
func (r *DescriptionResolver) TemplatePath(armType string) (string, error) {
	if armType == "" {
		return "", NewMissingArgumentError(ArmTypeArgument)
	}
	dir, err := r.robotTemplatesDir()
	if err != nil {
		return "", err
	}
	path, err := utils.SafeJoinDir(dir, armType+TemplateExtension)
	if err != nil {
		return "", errors.Wrapf(err, "invalid arm type %q", armType)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist), err == nil && info.IsDir():
		available, listErr := listArmTypes(dir)
		if listErr != nil {
			r.logger.Debugw("cannot list description templates", "dir", dir, "error", listErr)
		}
		return "", NewTemplateNotFoundError(armType, path, available)
	case err != nil:
		return "", errors.Wrapf(err, "checking description template %s", path)
	}
	return path, nil
}

// ArmTypes lists the arm types that have a description template, sorted.
func (r *DescriptionResolver) ArmTypes() ([]string, error) {
	dir, err := r.robotTemplatesDir()
	if err != nil {
		return nil, err
	}
	return listArmTypes(dir)
}

func listArmTypes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	types := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TemplateExtension) {
			return "", false
		}
		return strings.TrimSuffix(entry.Name(), TemplateExtension), true
	})
	sort.Strings(types)
	return types, nil
}

// ResolveDocument expands the arm type's template with the three launch arguments as its slot
// values.
func (r *DescriptionResolver) ResolveDocument(ctx context.Context, params Parameters) (*xacro.Document, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	path, err := r.TemplatePath(params.ArmType)
	if err != nil {
		return nil, err
	}
	r.logger.Debugw("resolving robot description", "template", path, "mappings", params.Mappings())
	return r.engine.Process(ctx, path, params.Mappings())
}

// Resolve returns the robot description as pretty-printed XML.
func (r *DescriptionResolver) Resolve(ctx context.Context, params Parameters) (string, error) {
	doc, err := r.ResolveDocument(ctx, params)
	if err != nil {
		return "", err
	}
	return doc.String(), nil
}
