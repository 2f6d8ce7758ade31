package fake

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/hoverbot/components/board"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

func TestFakeBoard(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	b, err := resource.Build[board.Board](ctx, board.API, nil, resource.Config{
		Model:      Model,
		Attributes: resource.AttributeMap{"pins": map[string]interface{}{"brake": true}},
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	brake, err := b.GPIOPinByName("brake")
	test.That(t, err, test.ShouldBeNil)
	high, err := brake.Get(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)

	dir, err := b.GPIOPinByName("dir")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dir.Set(ctx, true), test.ShouldBeNil)
	again, err := b.GPIOPinByName("dir")
	test.That(t, err, test.ShouldBeNil)
	high, err = again.Get(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)
	test.That(t, b.(*Board).Pin("dir").SetCount(), test.ShouldEqual, 1)

	di, err := b.DigitalInterruptByName("echo")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, di.Name(), test.ShouldEqual, "echo")
	test.That(t, b.(*Board).Digital("echo"), test.ShouldEqual, di)

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, b.(*Board).CloseCount, test.ShouldEqual, 1)
}
