package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/hoverbot/components/drive"
	"go.viam.com/hoverbot/components/drive/fake"
	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/motion"
	"go.viam.com/hoverbot/operation"
	"go.viam.com/hoverbot/testutils/inject"
)

// autoClock fires timers as soon as they are created.
type autoClock struct {
	*clock.Mock
}

func (c autoClock) Timer(d time.Duration) *clock.Timer {
	t := c.Mock.Timer(d)
	c.Mock.Add(d)
	return t
}

type executorFunc func(ctx context.Context, req motion.Request) (motion.Outcome, error)

func (f executorFunc) Execute(ctx context.Context, req motion.Request) (motion.Outcome, error) {
	return f(ctx, req)
}

type harness struct {
	engine *Engine
	drive  *fake.Drive
	clock  *clock.Mock
	ops    *operation.Manager
}

func newHarness(t *testing.T, rf rangefinder.Rangefinder) *harness {
	t.Helper()
	logger := logging.NewTestLogger(t)
	cfg := config.Default()
	mock := clock.NewMock()
	d := fake.NewDrive(logger)
	ops := operation.NewManager(logger)
	me := motion.NewEngine(d, rf, cfg.Safety, cfg.Sensor, autoClock{mock}, logger)
	return &harness{
		engine: NewEngine(me, rf, cfg.Sensor, ops, logger),
		drive:  d,
		clock:  mock,
		ops:    ops,
	}
}

func constant(cm int) *inject.Rangefinder {
	return &inject.Rangefinder{
		DistanceFunc: func(ctx context.Context, maxRangeCm int) (int, error) {
			return cm, nil
		},
	}
}

func decodeAndHandle(t *testing.T, h *harness, line string) CommandResult {
	t.Helper()
	cmd, err := Decode([]byte(line))
	test.That(t, err, test.ShouldBeNil)
	return h.engine.Handle(context.Background(), cmd)
}

func TestForwardScenario(t *testing.T) {
	h := newHarness(t, constant(400))
	res := decodeAndHandle(t, h, `{"id":7,"command":"FORWARD","floatData":[500]}`)
	want := CommandResult{ID: 7, Name: "FORWARD", Status: Success, Result: 500, Text: "Moved forward for 0.50 seconds"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	test.That(t, h.drive.Events(), test.ShouldResemble, []fake.Event{{Direction: drive.Forward}, {Stop: true}})
	test.That(t, h.ops.All(), test.ShouldBeEmpty)

	out, err := Encode(res)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual,
		`{"id":7,"command":"FORWARD","status":"SUCCESS","intData":[],"floatData":[],"result":500,"text":"Moved forward for 0.50 seconds"}`+"\n")
}

func TestObstacleScenario(t *testing.T) {
	var h *harness
	var start time.Time
	rf := &inject.Rangefinder{
		DistanceFunc: func(ctx context.Context, maxRangeCm int) (int, error) {
			at := h.clock.Since(start)
			h.clock.Add(20 * time.Millisecond)
			if at >= 100*time.Millisecond {
				return 10, nil
			}
			return 400, nil
		},
	}
	h = newHarness(t, rf)
	start = h.clock.Now()

	res := decodeAndHandle(t, h, `{"id":8,"command":"FORWARD","floatData":[2000]}`)
	test.That(t, res.ID, test.ShouldEqual, 8)
	test.That(t, res.Name, test.ShouldEqual, "FORWARD")
	test.That(t, res.Status, test.ShouldEqual, Failure)
	test.That(t, res.Result, test.ShouldEqual, 120.0)
	test.That(t, res.Text, test.ShouldEqual, "Obstacle detected at 10 cm, stopped after 0.12 seconds")
	test.That(t, h.drive.IsMoving(), test.ShouldBeFalse)
}

func TestTimedCommands(t *testing.T) {
	for _, tc := range []struct {
		line string
		want CommandResult
		dir  drive.Direction
	}{
		{
			`{"id":1,"command":"BACKWARD","floatData":[250.4]}`,
			CommandResult{ID: 1, Name: "BACKWARD", Status: Success, Result: 250, Text: "Moved backward for 0.25 seconds"},
			drive.Backward,
		},
		{
			`{"id":2,"command":"TURNLEFT","floatData":[300]}`,
			CommandResult{ID: 2, Name: "TURNLEFT", Status: Success, Result: 300, Text: "Turned left for 0.30 seconds"},
			drive.PivotLeft,
		},
		{
			`{"id":3,"command":"TURNRIGHT","floatData":[99.6]}`,
			CommandResult{ID: 3, Name: "TURNRIGHT", Status: Success, Result: 100, Text: "Turned right for 0.10 seconds"},
			drive.PivotRight,
		},
		{
			`{"id":4,"command":"move","float_data":[1.5]}`,
			CommandResult{ID: 4, Name: "move", Status: Success, Result: 1.5, Text: "Moved forward for 1.50 seconds"},
			drive.Forward,
		},
		{
			`{"id":5,"command":"turn","floatData":[90]}`,
			CommandResult{ID: 5, Name: "turn", Status: Success, Result: 90, Text: "Turned right 90.0 degrees"},
			drive.PivotRight,
		},
		{
			`{"id":6,"command":"turn","floatData":[-45.5]}`,
			CommandResult{ID: 6, Name: "turn", Status: Success, Result: -45.5, Text: "Turned left 45.5 degrees"},
			drive.PivotLeft,
		},
	} {
		t.Run(tc.want.Name, func(t *testing.T) {
			h := newHarness(t, constant(400))
			res := decodeAndHandle(t, h, tc.line)
			if diff := cmp.Diff(tc.want, res); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
			test.That(t, h.drive.Events(), test.ShouldResemble, []fake.Event{{Direction: tc.dir}, {Stop: true}})
		})
	}
}

func TestValidation(t *testing.T) {
	for _, tc := range []struct {
		line string
		text string
	}{
		{`{"id":1,"command":"FORWARD"}`, "No data received in floatData[]"},
		{`{"id":1,"command":"FORWARD","floatData":[]}`, "No data received in floatData[]"},
		{`{"id":1,"command":"FORWARD","floatData":[0]}`, "Invalid duration_ms received in floatData[0]"},
		{`{"id":1,"command":"BACKWARD","floatData":[-20]}`, "Invalid duration_ms received in floatData[0]"},
		{`{"id":1,"command":"TURNLEFT","floatData":[0.2]}`, "Invalid duration_ms received in floatData[0]"},
		{`{"id":1,"command":"move"}`, "No data received in float_data[]"},
		{`{"id":1,"command":"move","floatData":[-1]}`, "Invalid duration_seconds in float_data[0]"},
		{`{"id":1,"command":"turn","floatData":[]}`, "No data received in float_data[]"},
		{`{"id":1,"command":"FORWARD","floatData":[1e300]}`, "Invalid duration_ms received in floatData[0]"},
		{`{"id":1,"command":"move","floatData":[1e300]}`, "Invalid duration_seconds in float_data[0]"},
		{`{"id":1,"command":"turn","floatData":[-1e300]}`, "Invalid angle_degrees in float_data[0]"},
		{`{"id":1,"command":"dance"}`, "unrecognized command"},
		{`{"id":1,"command":"forward","floatData":[100]}`, "unrecognized command"},
	} {
		h := newHarness(t, constant(400))
		res := decodeAndHandle(t, h, tc.line)
		test.That(t, res.Status, test.ShouldEqual, Failure)
		test.That(t, res.Text, test.ShouldEqual, tc.text)
		test.That(t, res.ID, test.ShouldEqual, 1)
		test.That(t, res.Result, test.ShouldEqual, 0.0)
		test.That(t, h.drive.Events(), test.ShouldBeEmpty)
	}
}

func TestZeroTurn(t *testing.T) {
	h := newHarness(t, constant(400))
	res := decodeAndHandle(t, h, `{"id":9,"command":"turn","floatData":[0]}`)
	test.That(t, res, test.ShouldResemble, CommandResult{ID: 9, Name: "turn", Status: Success, Text: "Zero angle, no turn performed"})
	test.That(t, h.drive.Events(), test.ShouldBeEmpty)
}

func TestNullCommand(t *testing.T) {
	h := newHarness(t, constant(400))
	res := decodeAndHandle(t, h, `{"id":11,"floatData":[100]}`)
	test.That(t, res, test.ShouldResemble, CommandResult{ID: 11, Name: "NULL", Status: Failure, Text: "Received NULL command from server"})
}

func TestPing(t *testing.T) {
	calls := 0
	readings := []int{87, 0}
	rf := &inject.Rangefinder{
		DistanceFunc: func(ctx context.Context, maxRangeCm int) (int, error) {
			r := readings[calls%len(readings)]
			calls++
			return r, nil
		},
	}
	h := newHarness(t, rf)

	res := decodeAndHandle(t, h, `{"id":20,"command":"PING"}`)
	test.That(t, res, test.ShouldResemble, CommandResult{ID: 20, Name: "PING", Status: Success, Result: 87, Text: "Distance 87 cm"})

	// a missed echo is reported as the maximum range
	res = decodeAndHandle(t, h, `{"id":21,"command":"PING"}`)
	test.That(t, res, test.ShouldResemble, CommandResult{ID: 21, Name: "PING", Status: Success, Result: 400, Text: "Distance 400 cm"})
	test.That(t, h.drive.Events(), test.ShouldBeEmpty)
}

func TestPingIdempotent(t *testing.T) {
	h := newHarness(t, constant(123))
	first := decodeAndHandle(t, h, `{"id":1,"command":"PING"}`)
	second := decodeAndHandle(t, h, `{"id":1,"command":"PING"}`)
	test.That(t, second, test.ShouldResemble, first)
	test.That(t, h.drive.Events(), test.ShouldBeEmpty)
}

func TestPingSensorErrors(t *testing.T) {
	for _, err := range []error{rangefinder.ErrTimeout, errors.New("echo line stuck")} {
		rf := &inject.Rangefinder{
			DistanceFunc: func(ctx context.Context, maxRangeCm int) (int, error) {
				return 0, err
			},
		}
		h := newHarness(t, rf)
		res := decodeAndHandle(t, h, `{"id":1,"command":"PING"}`)
		test.That(t, res.Status, test.ShouldEqual, Success)
		test.That(t, res.Result, test.ShouldEqual, 400.0)
	}
}

func TestMotionFailure(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := config.Default()
	d := &inject.Drive{
		EngageFunc: func(ctx context.Context, dir drive.Direction) error {
			return errors.New("brake pin")
		},
		StopFunc: func(ctx context.Context) error {
			return nil
		},
	}
	me := motion.NewEngine(d, constant(400), cfg.Safety, cfg.Sensor, autoClock{clock.NewMock()}, logger)
	e := NewEngine(me, constant(400), cfg.Sensor, operation.NewManager(logger), logger)

	res := e.Handle(context.Background(), Command{ID: 3, Name: "BACKWARD", HasName: true, FloatParams: []float64{100}})
	test.That(t, res.Status, test.ShouldEqual, Failure)
	test.That(t, res.Text, test.ShouldEqual, "Motion failed: engaging backward: brake pin")
}

func TestPanicRecovered(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	cfg := config.Default()
	ops := operation.NewManager(logger)
	var seen *operation.Operation
	exec := executorFunc(func(ctx context.Context, req motion.Request) (motion.Outcome, error) {
		seen = operation.Get(ctx)
		panic("wheel fell off")
	})
	e := NewEngine(exec, constant(400), cfg.Sensor, ops, logger)

	res := e.Handle(context.Background(), Command{ID: 4, Name: "FORWARD", HasName: true, FloatParams: []float64{100}})
	test.That(t, res, test.ShouldResemble, CommandResult{ID: 4, Name: "FORWARD", Status: Failure, Text: "internal error: wheel fell off"})
	test.That(t, seen, test.ShouldNotBeNil)
	test.That(t, seen.Method, test.ShouldEqual, "FORWARD")
	test.That(t, ops.All(), test.ShouldBeEmpty)
	test.That(t, logs.FilterMessage("command panicked").Len(), test.ShouldEqual, 1)

	// the engine keeps working afterwards
	res = e.Handle(context.Background(), Command{ID: 5, Name: "PING", HasName: true})
	test.That(t, res.Status, test.ShouldEqual, Success)
}

func TestStatusString(t *testing.T) {
	test.That(t, Success.String(), test.ShouldEqual, "SUCCESS")
	test.That(t, Failure.String(), test.ShouldEqual, "FAILURE")
}
