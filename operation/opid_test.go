package operation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.viam.com/test"

	"go.viam.com/hoverbot/logging"
)

func TestBasic(t *testing.T) {
	ctx := context.Background()

	logger := logging.NewTestLogger(t)
	h := NewManager(logger)
	o := Get(ctx)
	test.That(t, o, test.ShouldBeNil)

	test.That(t, len(h.All()), test.ShouldEqual, 0)

	func() {
		ctx2, cleanup := h.Create(ctx, "FORWARD", []float64{500})
		defer cleanup()

		test.That(t, func() { h.Create(ctx2, "PING", nil) }, test.ShouldPanic)

		o := Get(ctx2)
		test.That(t, o, test.ShouldNotBeNil)
		test.That(t, o.Method, test.ShouldEqual, "FORWARD")
		test.That(t, o.Arguments, test.ShouldResemble, []float64{500})
		test.That(t, o.ID.String(), test.ShouldNotEqual, "")
		test.That(t, len(h.All()), test.ShouldEqual, 1)
		test.That(t, h.All()[0].ID, test.ShouldEqual, o.ID)
		test.That(t, h.Find(o.ID).ID, test.ShouldEqual, o.ID)
		test.That(t, h.FindString(o.ID.String()).ID, test.ShouldEqual, o.ID)
	}()

	test.That(t, len(h.All()), test.ShouldEqual, 0)

	func() {
		ctx2, cleanup2 := h.Create(ctx, "a", nil)
		defer cleanup2()
		ctx3, cleanup3 := h.Create(ctx, "b", nil)
		defer cleanup3()

		test.That(t, h.All()[0].Method, test.ShouldEqual, "a")
		h.CancelAll()
		test.That(t, ctx2.Err(), test.ShouldNotBeNil)
		test.That(t, ctx3.Err(), test.ShouldNotBeNil)
	}()

	ctx4, cleanup4 := h.Create(ctx, "c", nil)
	cleanup4()
	test.That(t, ctx4.Err(), test.ShouldNotBeNil)
	test.That(t, len(h.All()), test.ShouldEqual, 0)
}

func TestCreateWithSession(t *testing.T) {
	ctx := context.Background()

	logger := logging.NewTestLogger(t)
	manager := NewManager(logger)

	op1Ctx, cleanup := manager.Create(ctx, "foo", nil)
	op1 := Get(op1Ctx)
	test.That(t, op1.SessionID, test.ShouldEqual, uuid.Nil)
	cleanup()

	sessID := uuid.New()
	sess1Ctx := WithSessionID(ctx, sessID)

	op2Ctx, cleanup := manager.Create(sess1Ctx, "foo", nil)
	op2 := Get(op2Ctx)
	test.That(t, op2.SessionID, test.ShouldEqual, sessID)
	cleanup()
}
