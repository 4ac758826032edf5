// Package registry holds the global registry of trajectory score functions. Implementations
// register themselves from init and are looked up by name at planner construction time.
package registry

import (
	"runtime"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// RegDebugInfo records where a registration happened.
type RegDebugInfo struct {
	RegistrarLoc string
}

// AttributeMap is the free-form attribute block a score function is configured with.
type AttributeMap map[string]interface{}

// AttributeMapConverter converts an AttributeMap into a score function's native config.
type AttributeMapConverter func(attributes AttributeMap) (interface{}, error)

// TransformAttributeMap decodes attributes into a new T using its json tags.
func TransformAttributeMap[T any](attributes AttributeMap) (*T, error) {
	var conf T
	if err := DecodeAttributeMap(attributes, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// DecodeAttributeMap decodes attributes over result, a pointer to a struct. Fields with no
// matching attribute keep their current value.
func DecodeAttributeMap(attributes AttributeMap, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: result})
	if err != nil {
		return err
	}
	return decoder.Decode(attributes)
}

func getCallerName() string {
	pc, _, _, ok := runtime.Caller(2)
	details := runtime.FuncForPC(pc)
	if ok && details != nil {
		return details.Name()
	}
	return "unknown"
}

// ErrScoreFunctionNotFound is returned when no score function is registered under a name.
var ErrScoreFunctionNotFound = errors.New("score function not registered")
