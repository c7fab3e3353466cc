// Package launch resolves the OpenArm display launch: it turns the three launch arguments into a
// robot description and an RViz configuration, and emits the process specifications that show
// them.
package launch

import (
	"sort"

	"github.com/samber/lo"
)

// Launch argument names.
const (
	ArmTypeArgument     = "arm_type"
	EndEffectorArgument = "ee_type"
	BimanualArgument    = "bimanual"
)

// Defaults for the optional launch arguments.
const (
	DefaultEndEffector = "openarm_hand"
	DefaultBimanual    = "false"
)

// Parameters are the launch arguments. All values are text; Bimanual is only interpreted by
// SelectVisualizationConfig and by the description template itself.
type Parameters struct {
	ArmType     string
	EndEffector string
	Bimanual    string
}

// Argument declares a launch argument.
type Argument struct {
	Name        string `json:"name"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

var declaredArguments = []Argument{
	{
		Name:        ArmTypeArgument,
		Required:    true,
		Description: "Type of arm to visualize (e.g., v10)",
	},
	{
		Name:        EndEffectorArgument,
		Default:     DefaultEndEffector,
		Description: "Type of end-effector to attach (e.g., openarm_hand or none)",
	},
	{
		Name:        BimanualArgument,
		Default:     DefaultBimanual,
		Description: "Whether to use bimanual configuration",
	},
}

// DeclaredArguments returns the launch arguments in declaration order.
func DeclaredArguments() []Argument {
	return append([]Argument(nil), declaredArguments...)
}

// CheckArguments rejects names outside the declared arguments, so a misspelled argument fails
// instead of silently falling back to its default.
func CheckArguments(values map[string]string) error {
	declared := lo.SliceToMap(declaredArguments, func(arg Argument) (string, Argument) {
		return arg.Name, arg
	})
	unknown := lo.Filter(lo.Keys(values), func(name string, _ int) bool {
		_, ok := declared[name]
		return !ok
	})
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return NewUnknownArgumentError(unknown, lo.Map(declaredArguments, func(arg Argument, _ int) string {
		return arg.Name
	}))
}

// ParametersFromMap builds Parameters from named values, filling in defaults. arm_type is
// required and names outside the declared arguments are rejected.
func ParametersFromMap(values map[string]string) (Parameters, error) {
	if err := CheckArguments(values); err != nil {
		return Parameters{}, err
	}

	resolved := make(map[string]string, len(declaredArguments))
	for _, arg := range declaredArguments {
		value, ok := values[arg.Name]
		if !ok {
			if arg.Required {
				return Parameters{}, NewMissingArgumentError(arg.Name)
			}
			value = arg.Default
		}
		resolved[arg.Name] = value
	}

	params := Parameters{
		ArmType:     resolved[ArmTypeArgument],
		EndEffector: resolved[EndEffectorArgument],
		Bimanual:    resolved[BimanualArgument],
	}
	return params, params.Validate()
}

// Validate checks that an arm type was given.
func (p Parameters) Validate() error {
	if p.ArmType == "" {
		return NewMissingArgumentError(ArmTypeArgument)
	}
	return nil
}

// Mappings returns the template slot values, passed through unchanged.
func (p Parameters) Mappings() map[string]string {
	return map[string]string{
		ArmTypeArgument:     p.ArmType,
		EndEffectorArgument: p.EndEffector,
		BimanualArgument:    p.Bimanual,
	}
}
