// Package telemetry streams proximity readings to the peer independently of command traffic.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/hoverbot/components/rangefinder"
	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/logging"
)

// RecordType is the type of every record this package produces.
const RecordType = "proximity"

// Record is one proximity sample. Timestamp is seconds since the streamer was created.
type Record struct {
	Type       string  `json:"type"`
	Timestamp  float64 `json:"timestamp"`
	DistanceCm int     `json:"distance_cm"`
	RobotID    string  `json:"robot_id"`
}

// A Sender delivers one encoded record. Delivery is best effort.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Stats counts what a streamer has done so far.
type Stats struct {
	Sent   uint64
	Failed uint64
}

// Streamer samples a rangefinder at a fixed period and sends each sample.
type Streamer struct {
	sensor     rangefinder.Rangefinder
	sensorConf config.SensorConfig
	period     time.Duration
	identity   string
	sender     Sender
	clock      clock.Clock
	epoch      time.Time
	logger     logging.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewStreamer returns a streamer. A nil clk uses the wall clock.
func NewStreamer(
	sensor rangefinder.Rangefinder,
	identity string,
	sensorConf config.SensorConfig,
	conf config.TelemetryConfig,
	sender Sender,
	clk clock.Clock,
	logger logging.Logger,
) *Streamer {
	if clk == nil {
		clk = clock.New()
	}
	return &Streamer{
		sensor:     sensor,
		sensorConf: sensorConf,
		period:     conf.Period(),
		identity:   identity,
		sender:     sender,
		clock:      clk,
		epoch:      clk.Now(),
		logger:     logger,
	}
}

// Run samples once immediately and then once per period until ctx is done. Failed sends
// are logged and never retried.
func (s *Streamer) Run(ctx context.Context) error {
	if s.period <= 0 {
		return errors.Errorf("telemetry period must be positive, got %s", s.period)
	}
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	s.logger.Infow("telemetry started", "period", s.period)
	defer func() {
		stats := s.Stats()
		s.logger.Infow("telemetry stopped", "sent", stats.Sent, "failed", stats.Failed)
	}()

	for {
		s.sample(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Streamer) sample(ctx context.Context) {
	cm, err := rangefinder.Measure(ctx, s.sensor, s.sensorConf.MaxRangeCm, s.sensorConf.Timeout())
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Debugw("telemetry measurement failed, reporting max range", "error", err)
	}

	payload, err := json.Marshal(Record{
		Type:       RecordType,
		Timestamp:  s.clock.Since(s.epoch).Seconds(),
		DistanceCm: cm,
		RobotID:    s.identity,
	})
	if err != nil {
		s.failed.Inc()
		s.logger.Errorw("encoding telemetry record", "error", err)
		return
	}
	if err := s.sender.Send(ctx, payload); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.failed.Inc()
		s.logger.Warnw("failed to send telemetry", "error", err)
		return
	}
	s.sent.Inc()
}

// Stats returns the current counters.
func (s *Streamer) Stats() Stats {
	return Stats{Sent: s.sent.Load(), Failed: s.failed.Load()}
}
