// package classifier decides which reconciliation class an installed addon belongs to.
//
// Classification is a pure function of the addon and the desired state, so its rules can be
// tested without any network access.
package classifier

import (
	"fmt"
	"strings"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// DefaultPreserveRules keep any Trakt integration, whatever id it was registered under.
var DefaultPreserveRules = []string{
	`manifest.id.lowerAscii().contains("trakt")`,
	`manifest.name.lowerAscii().contains("trakt")`,
}

// DefaultBuiltins are the platform addons present on every account.
var DefaultBuiltins = []string{
	"com.linvo.cinemeta",
	"org.stremio.opensubtitlesv3",
	"org.stremio.opensubtitles",
	"org.stremio.local",
}

// Predicate reports whether an addon belongs to a protected category.
type Predicate interface {
	Match(addon models.AddonDescriptor) bool
	String() string
}

// Classifier assigns exactly one [models.Classification] to every addon.
//
// Precedence is Default, then PreservedVariant, then CustomDesired, then CustomUndesired.
type Classifier struct {
	builtins map[string]struct{}
	preserve []Predicate
}

// New creates a classifier from builtin manifest ids and preserve predicates.
func New(builtins []string, preserve ...Predicate) *Classifier {
	set := make(map[string]struct{}, len(builtins))
	for _, id := range builtins {
		set[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}
	return &Classifier{builtins: set, preserve: preserve}
}

// FromConfig compiles the configured preserve rules.
func FromConfig(cfg shared.ReconcileConfig) (*Classifier, error) {
	builtins := cfg.DefaultAddons
	if builtins == nil {
		builtins = DefaultBuiltins
	}
	rules := cfg.Preserve
	if rules == nil {
		rules = DefaultPreserveRules
	}

	preds, err := CompileRules(rules...)
	if err != nil {
		return nil, err
	}
	return New(builtins, preds...), nil
}

// Classify returns the class of an installed addon.
func (c *Classifier) Classify(addon models.AddonDescriptor, desired *models.DesiredState) models.Classification {
	switch {
	case c.IsBuiltin(addon):
		return models.Default
	case c.IsPreserved(addon):
		return models.PreservedVariant
	case desired.Has(addon.Key()):
		return models.CustomDesired
	default:
		return models.CustomUndesired
	}
}

// IsBuiltin reports whether addon matches a platform builtin signature.
//
// Protected addons are builtin regardless of their id.
func (c *Classifier) IsBuiltin(addon models.AddonDescriptor) bool {
	if addon.Flags.Protected {
		return true
	}
	_, ok := c.builtins[strings.ToLower(addon.Key())]
	return ok
}

// IsPreserved reports whether any preserve predicate matches addon.
func (c *Classifier) IsPreserved(addon models.AddonDescriptor) bool {
	for _, p := range c.preserve {
		if p.Match(addon) {
			return true
		}
	}
	return false
}

// Rules returns the preserve predicates in evaluation order.
func (c *Classifier) Rules() []Predicate {
	return append([]Predicate(nil), c.preserve...)
}

// CELRule is a preserve predicate written as a CEL expression over manifest, flags and transport_url.
type CELRule struct {
	expr string
	prg  cel.Program
}

var env = mustEnv()

func mustEnv() *cel.Env {
	e, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("manifest", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("flags", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("transport_url", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to build rule environment: %v", err))
	}
	return e
}

// CompileRule compiles a single boolean CEL expression.
func CompileRule(expr string) (*CELRule, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: preserve rule %q: %v", shared.ErrInvalidConfig, expr, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: preserve rule %q must evaluate to bool, got %v", shared.ErrInvalidConfig, expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: preserve rule %q: %v", shared.ErrInvalidConfig, expr, err)
	}
	return &CELRule{expr: expr, prg: prg}, nil
}

// CompileRules compiles every expression, failing on the first invalid one.
func CompileRules(exprs ...string) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(exprs))
	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		rule, err := CompileRule(expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, rule)
	}
	return preds, nil
}

// Match evaluates the rule. Evaluation errors, such as a missing manifest member, count as no match.
func (r *CELRule) Match(addon models.AddonDescriptor) bool {
	out, _, err := r.prg.Eval(map[string]any{
		"manifest":      addon.Manifest.Fields(),
		"flags":         addon.Flags.Fields(),
		"transport_url": addon.TransportURL,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}

func (r *CELRule) String() string { return r.expr }

// PredicateFunc adapts a function to [Predicate].
type PredicateFunc struct {
	Name string
	Fn   func(models.AddonDescriptor) bool
}

func (p PredicateFunc) Match(addon models.AddonDescriptor) bool { return p.Fn(addon) }
func (p PredicateFunc) String() string                          { return p.Name }
