package registry

import (
	"context"
	"maps"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/xdwa/logging"
)

type (
	// A CreateScoreFunction creates a score function from its converted attributes. The converted
	// value is nil when the registration has no AttributeMapConverter.
	CreateScoreFunction func(ctx context.Context, conf interface{}, logger logging.Logger) (interface{}, error)
)

// ScoreFunction registry.
var scoreFunctionRegistry = make(map[string]ScoreFunction)

// ScoreFunction stores a score function constructor (mandatory) and attribute converter (optional).
type ScoreFunction struct {
	RegDebugInfo
	Constructor           CreateScoreFunction
	AttributeMapConverter AttributeMapConverter
}

// RegisterScoreFunction registers a score function under a name.
func RegisterScoreFunction(name string, creator ScoreFunction) {
	creator.RegistrarLoc = getCallerName()
	if _, old := scoreFunctionRegistry[name]; old {
		panic(errors.Errorf("trying to register two score functions with the same name: %s", name))
	}
	if creator.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for score function: %s", name))
	}
	scoreFunctionRegistry[name] = creator
}

// DeregisterScoreFunction removes a registration. It is meant for tests.
func DeregisterScoreFunction(name string) {
	delete(scoreFunctionRegistry, name)
}

// ScoreFunctionLookup looks up a score function registration by name. nil is returned if
// there is no registration.
func ScoreFunctionLookup(name string) *ScoreFunction {
	registration, ok := scoreFunctionRegistry[name]
	if ok {
		return &registration
	}
	return nil
}

// RegisteredScoreFunctions returns a copy of the registered score functions.
func RegisteredScoreFunctions() map[string]ScoreFunction {
	return maps.Clone(scoreFunctionRegistry)
}

// RegisteredScoreFunctionNames returns the registered names in sorted order.
func RegisteredScoreFunctionNames() []string {
	names := lo.Keys(scoreFunctionRegistry)
	slices.Sort(names)
	return names
}

// NewScoreFunctionNotFoundError returns an error for a name with no registration.
func NewScoreFunctionNotFoundError(name string) error {
	return errors.Wrapf(ErrScoreFunctionNotFound, "%q", name)
}
