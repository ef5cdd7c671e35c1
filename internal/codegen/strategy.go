package codegen

import (
	"fmt"
	"slices"

	"github.com/dev-five-git/vespera/internal/relation"
	"github.com/dev-five-git/vespera/internal/schema"
)

// Strategy is the closed set of per-field construction forms.
type Strategy int

const (
	// StrategyCopy copies the model field as-is.
	StrategyCopy Strategy = iota
	// StrategyWrap takes the address of the copied field for an
	// API-optional target.
	StrategyWrap
	// StrategyProjection constructs a cycle-breaking projection type from
	// the target's included fields.
	StrategyProjection
	// StrategySync applies the target's synchronous constructor; the
	// target has no relations of its own.
	StrategySync
	// StrategyAsync delegates to the target's FromModel bridge, which
	// needs the data-access handle.
	StrategyAsync
	// StrategyInlineCycle constructs inline with the exclusion list
	// because the target is already on the traversal path.
	StrategyInlineCycle
	// StrategySkip drops the field: its relation target could not be
	// resolved, so the conservative default is to omit it.
	StrategySkip
)

func (s Strategy) String() string {
	switch s {
	case StrategyCopy:
		return "copy"
	case StrategyWrap:
		return "wrap"
	case StrategyProjection:
		return "projection"
	case StrategySync:
		return "sync"
	case StrategyAsync:
		return "async"
	case StrategyInlineCycle:
		return "inline-cycle"
	case StrategySkip:
		return "skip"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// FieldPlan pairs one bridged field with its chosen strategy. Exactly one
// of Info (plain fields) and Relation is meaningful.
type FieldPlan struct {
	Name     string
	Strategy Strategy
	Info     schema.FieldInfo
	Relation *relation.Field
	Target   *schema.Definition
}

// Plan runs the decision procedure over every bridged field of a model
// definition. pick limits the plain fields when non-empty; omit removes
// fields by name.
func Plan(def *schema.Definition, schemaName string, pick, omit []string, src schema.DefinitionSource) ([]FieldPlan, error) {
	rels, err := relation.Analyze(def, schemaName, []string{def.ModulePath}, src)
	if err != nil {
		return nil, err
	}
	var plans []FieldPlan
	for _, f := range relation.NonRelationFields(def) {
		if !selected(f.GoName, pick, omit) || f.Skip {
			continue
		}
		s := StrategyCopy
		if f.Optional {
			s = StrategyWrap
		}
		plans = append(plans, FieldPlan{Name: f.GoName, Strategy: s, Info: f})
	}
	for i := range rels {
		rel := &rels[i]
		if !selected(rel.Name, pick, omit) {
			continue
		}
		var target *schema.Definition
		var found bool
		if src != nil {
			target, found = src.Lookup(rel.TargetName)
		}
		plan := FieldPlan{Name: rel.Name, Relation: rel, Target: target}
		switch {
		case rel.Circular:
			plan.Strategy = StrategyInlineCycle
			if !found {
				plan.Strategy = StrategySkip
			}
		case !found:
			plan.Strategy = StrategySkip
		case rel.InlineType != "":
			plan.Strategy = StrategyProjection
		case !relation.HasFKRelations(target):
			plan.Strategy = StrategySync
		default:
			plan.Strategy = StrategyAsync
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// NeedsDB reports whether any planned field requires the asynchronous
// bridge form. Without it the generator emits a plain constructor.
func NeedsDB(plans []FieldPlan) bool {
	for _, p := range plans {
		switch p.Strategy {
		case StrategyProjection, StrategySync, StrategyAsync, StrategyInlineCycle:
			return true
		}
	}
	return false
}

func selected(name string, pick, omit []string) bool {
	if slices.Contains(omit, name) {
		return false
	}
	if len(pick) > 0 {
		return slices.Contains(pick, name)
	}
	return true
}
