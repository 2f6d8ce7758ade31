package resource_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

type widgetConfig struct {
	Pin     string `json:"pin"`
	Timeout int    `json:"timeout_ms"`
}

func (c *widgetConfig) Validate(path string) error {
	if c.Pin == "" {
		return errors.Errorf("%s: pin required", path)
	}
	return nil
}

type widget struct {
	pin  string
	name string
}

func TestAttributeMap(t *testing.T) {
	am := resource.AttributeMap{
		"a": 1.0,
		"b": "2",
		"c": true,
		"d": "nope",
		"e": []interface{}{1.0, 2, "3"},
		"f": "pin",
	}
	test.That(t, am.Has("a"), test.ShouldBeTrue)
	test.That(t, am.Has("z"), test.ShouldBeFalse)
	test.That(t, am.Int("a", 5), test.ShouldEqual, 1)
	test.That(t, am.Int("b", 5), test.ShouldEqual, 2)
	test.That(t, am.Int("d", 5), test.ShouldEqual, 5)
	test.That(t, am.Int("z", 5), test.ShouldEqual, 5)
	test.That(t, am.Float64("b", 0), test.ShouldEqual, 2.0)
	test.That(t, am.Bool("c", false), test.ShouldBeTrue)
	test.That(t, am.Bool("z", true), test.ShouldBeTrue)
	test.That(t, am.IntSlice("e"), test.ShouldResemble, []int{1, 2, 3})
	test.That(t, am.IntSlice("z"), test.ShouldBeNil)
	test.That(t, am.String("f"), test.ShouldEqual, "pin")
}

func TestTransformAttributeMap(t *testing.T) {
	conf, err := resource.TransformAttributeMap[*widgetConfig](resource.AttributeMap{
		"pin":        "18",
		"timeout_ms": 30.0,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, &widgetConfig{Pin: "18", Timeout: 30})

	_, err = resource.TransformAttributeMap[*widgetConfig](resource.AttributeMap{"pni": "18"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pni")
}

func TestRegistryBuild(t *testing.T) {
	const api = resource.API("widget")
	const model = resource.Model("test-widget")
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	resource.RegisterComponent(api, model, resource.Registration[*widget, *widgetConfig]{
		Constructor: func(
			ctx context.Context,
			deps resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (*widget, error) {
			newConf, err := resource.NativeConfig[*widgetConfig](conf)
			if err != nil {
				return nil, err
			}
			name, err := resource.FromDependencies[string](deps, resource.APIBoard)
			if err != nil {
				return nil, err
			}
			return &widget{pin: newConf.Pin, name: name}, nil
		},
	})
	defer resource.DeregisterComponent(api, model)

	test.That(t, resource.RegisteredModels(api), test.ShouldResemble, []resource.Model{model})
	test.That(t, func() {
		resource.RegisterComponent(api, model, resource.Registration[*widget, *widgetConfig]{
			Constructor: func(context.Context, resource.Dependencies, resource.Config, logging.Logger) (*widget, error) {
				return nil, nil
			},
		})
	}, test.ShouldPanic)

	deps := resource.Dependencies{resource.APIBoard: "board0"}
	w, err := resource.Build[*widget](ctx, api, deps, resource.Config{
		Model:      model,
		Attributes: resource.AttributeMap{"pin": "7"},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.pin, test.ShouldEqual, "7")
	test.That(t, w.name, test.ShouldEqual, "board0")

	_, err = resource.Build[*widget](ctx, api, deps, resource.Config{Model: model}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "widget.attributes: pin required")

	_, err = resource.Build[*widget](ctx, api, nil, resource.Config{
		Model:      model,
		Attributes: resource.AttributeMap{"pin": "7"},
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing from dependencies")

	_, err = resource.Build[*widget](ctx, api, deps, resource.Config{Model: "other"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no widget model "other" registered`)

	_, err = resource.Build[*widget](ctx, api, deps, resource.Config{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = resource.Build[string](ctx, api, deps, resource.Config{
		Model:      model,
		Attributes: resource.AttributeMap{"pin": "7"},
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
