package operation

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestSingleOperationManager(t *testing.T) {
	ctx := context.Background()
	som := SingleOperationManager{}

	test.That(t, som.OpRunning(), test.ShouldBeFalse)

	t.Run("nested operation does not cancel parent", func(t *testing.T) {
		ctx1, close1 := som.New(ctx)
		defer close1()
		_, close2 := som.New(ctx1)
		defer close2()
		test.That(t, ctx1.Err(), test.ShouldBeNil)
		test.That(t, som.OpRunning(), test.ShouldBeTrue)
		test.That(t, som.Started(), test.ShouldEqual, 1)
	})

	test.That(t, som.OpRunning(), test.ShouldBeFalse)

	t.Run("new operation cancels the previous one", func(t *testing.T) {
		ctx1, close1 := som.New(ctx)
		defer close1()
		ctx2, close2 := som.New(ctx)
		defer close2()
		test.That(t, ctx1.Err(), test.ShouldNotBeNil)
		test.That(t, ctx2.Err(), test.ShouldBeNil)
	})

	t.Run("cancelling on different context works", func(t *testing.T) {
		opCtx, done := som.New(ctx)
		defer done()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			<-opCtx.Done()
		}()

		som.CancelRunning(ctx)
		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("operation was not cancelled")
		}
		test.That(t, som.OpRunning(), test.ShouldBeFalse)
	})

	t.Run("cancel from inside the operation is ignored", func(t *testing.T) {
		opCtx, done := som.New(ctx)
		defer done()
		som.CancelRunning(opCtx)
		test.That(t, opCtx.Err(), test.ShouldBeNil)
	})

	t.Run("finishing releases the context", func(t *testing.T) {
		opCtx, done := som.New(ctx)
		done()
		test.That(t, opCtx.Err(), test.ShouldNotBeNil)
		test.That(t, som.OpRunning(), test.ShouldBeFalse)
	})
}
