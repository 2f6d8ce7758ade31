// Package resource contains the component registry and the configuration types used
// to construct components by model name.
package resource

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// API identifies a kind of component, such as a board or a drive.
type API string

// The APIs a hoverbot is assembled from.
const (
	APIBoard       = API("board")
	APIRangefinder = API("rangefinder")
	APIDrive       = API("drive")
)

// Closer is implemented by every component that holds hardware or goroutines.
type Closer interface {
	Close(ctx context.Context) error
}

// Dependencies are the already built components a constructor may use, keyed by API.
type Dependencies map[API]interface{}

// FromDependencies returns the dependency registered under the given API as a T.
func FromDependencies[T any](deps Dependencies, api API) (T, error) {
	var zero T
	res, ok := deps[api]
	if !ok {
		return zero, DependencyNotFoundError(api)
	}
	typed, ok := res.(T)
	if !ok {
		return zero, errors.Errorf("dependency %q is a %T, expected %T", api, res, zero)
	}
	return typed, nil
}

// DependencyNotFoundError is used when a constructor needs a component that was not built.
func DependencyNotFoundError(api API) error {
	return errors.Errorf("%q missing from dependencies", api)
}

// ModelNotRegisteredError is returned when a config names a model nobody registered.
func ModelNotRegisteredError(api API, model Model) error {
	return fmt.Errorf("no %s model %q registered", api, model)
}
