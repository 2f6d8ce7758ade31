package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/hoverbot/logging"
)

type (
	// A Create creates a component from a collection of dependencies and a given config.
	Create[ResourceT any] func(
		ctx context.Context,
		deps Dependencies,
		conf Config,
		logger logging.Logger,
	) (ResourceT, error)

	// An AttributeMapConverter converts an attribute map into a native config type for a component.
	AttributeMapConverter[ConfigT any] func(attributes AttributeMap) (ConfigT, error)
)

// A Registration stores construction info for a component. A single constructor is mandatory.
type Registration[ResourceT, ConfigT any] struct {
	Constructor Create[ResourceT]

	// AttributeMapConverter is used to convert raw attributes to the component's native config.
	// When nil, TransformAttributeMap[ConfigT] is used.
	AttributeMapConverter AttributeMapConverter[ConfigT]
}

type registration struct {
	create  func(ctx context.Context, deps Dependencies, conf Config, logger logging.Logger) (interface{}, error)
	convert func(attributes AttributeMap) (interface{}, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[APIModel]registration{}
)

// RegisterComponent registers a model of a component API and its constructor. Registering
// the same model twice panics.
func RegisterComponent[ResourceT, ConfigT any](api API, model Model, reg Registration[ResourceT, ConfigT]) {
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for %s/%s", api, model))
	}
	if err := model.Validate(); err != nil {
		panic(err)
	}
	conv := reg.AttributeMapConverter
	if conv == nil {
		conv = TransformAttributeMap[ConfigT]
	}

	key := APIModel{api, model}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[key]; ok {
		panic(errors.Errorf("trying to register two of the same component model %s", key))
	}
	registry[key] = registration{
		create: func(ctx context.Context, deps Dependencies, conf Config, logger logging.Logger) (interface{}, error) {
			return reg.Constructor(ctx, deps, conf, logger)
		},
		convert: func(attributes AttributeMap) (interface{}, error) {
			return conv(attributes)
		},
	}
}

// DeregisterComponent removes a previously registered model. Used in testing.
func DeregisterComponent(api API, model Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, APIModel{api, model})
}

// RegisteredModels returns the sorted model names registered for an API.
func RegisteredModels(api API) []Model {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var models []Model
	for key := range registry {
		if key.API == api {
			models = append(models, key.Model)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

// Build converts the config's attributes for its model, validates them and calls the
// registered constructor. The result must be a T.
func Build[T any](ctx context.Context, api API, deps Dependencies, conf Config, logger logging.Logger) (T, error) {
	var zero T
	path := string(api)
	if err := conf.Validate(path); err != nil {
		return zero, err
	}

	registryMu.RLock()
	reg, ok := registry[APIModel{api, conf.Model}]
	registryMu.RUnlock()
	if !ok {
		return zero, ModelNotRegisteredError(api, conf.Model)
	}

	converted, err := reg.convert(conf.Attributes)
	if err != nil {
		return zero, errors.Wrapf(err, "error converting attributes for %s/%s", api, conf.Model)
	}
	if validator, ok := converted.(ConfigValidator); ok {
		if err := validator.Validate(fmt.Sprintf("%s.attributes", path)); err != nil {
			return zero, err
		}
	}
	conf.ConvertedAttributes = converted

	res, err := reg.create(ctx, deps, conf, logger.Named(string(api)))
	if err != nil {
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, errors.Errorf("%s/%s constructor returned %T which is not the expected type", api, conf.Model, res)
	}
	return typed, nil
}
