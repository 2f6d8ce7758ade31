package resource

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// A Config describes the configuration of one component.
type Config struct {
	Model      Model        `json:"model" yaml:"model"`
	Attributes AttributeMap `json:"attributes" yaml:"attributes"`

	ConvertedAttributes interface{} `json:"-" yaml:"-"`
}

// Validate ensures the config names a model.
func (conf *Config) Validate(path string) error {
	if conf.Model == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "model")
	}
	if err := conf.Model.Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// ConfigValidator is implemented by converted attribute structs that can check themselves.
type ConfigValidator interface {
	Validate(path string) error
}

// NativeConfig returns the native config from the given config via its
// converted attributes.
func NativeConfig[T any](conf Config) (T, error) {
	var zero T
	if conf.ConvertedAttributes == nil {
		return zero, errors.Errorf("expected converted attributes of type %T but got none", zero)
	}
	typed, ok := conf.ConvertedAttributes.(T)
	if !ok {
		return zero, errors.Errorf("expected converted attributes of type %T but got %T", zero, conf.ConvertedAttributes)
	}
	return typed, nil
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		// nothing to transform
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	if len(md.Unused) != 0 {
		return out, fmt.Errorf("unknown attributes %v", md.Unused)
	}
	return out, nil
}
