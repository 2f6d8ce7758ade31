package robot

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go.viam.com/hoverbot/link"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/operation"
	"go.viam.com/hoverbot/protocol"
	"go.viam.com/hoverbot/telemetry"
)

// Run keeps the robot connected to its peer until ctx is done. Each connection is served
// by a session; when a session ends for any reason other than ctx the robot reconnects,
// no more often than once per reconnect delay.
func (r *Robot) Run(ctx context.Context) error {
	netConf := r.cfg.Network
	limiter := rate.NewLimiter(rate.Every(netConf.ReconnectDelay()), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		err := r.connectAndServe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warnw("session ended, reconnecting", "server", netConf.ServerAddress(), "error", err)
	}
}

func (r *Robot) connectAndServe(ctx context.Context) error {
	netConf := r.cfg.Network
	r.logger.Infow("connecting", "server", netConf.ServerAddress())
	conn, err := link.Dial(ctx, netConf.ServerAddress(), netConf.ConnectTimeout(), netConf.ReceiveTimeout())
	if err != nil {
		return err
	}

	var sender telemetry.Sender
	datagram, err := link.DialDatagram(ctx, netConf.TelemetryAddress())
	if err != nil {
		r.logger.Warnw("continuing without telemetry", "error", err)
	} else {
		sender = datagram
	}

	err = r.Serve(ctx, conn, sender)
	if datagram != nil {
		err = multierr.Combine(err, datagram.Close())
	}
	return err
}

// Serve runs one session on an established connection and closes it before returning.
// Telemetry is streamed through sender for exactly as long as the session lasts; a nil
// sender disables it.
func (r *Robot) Serve(ctx context.Context, conn *link.Conn, sender telemetry.Sender) error {
	s := &session{
		id:     uuid.New(),
		robot:  r,
		conn:   conn,
		sender: sender,
	}
	s.logger = r.logger.With("session", s.id.String())
	return s.run(ctx)
}

type session struct {
	id     uuid.UUID
	robot  *Robot
	conn   *link.Conn
	sender telemetry.Sender
	logger logging.Logger
}

func (s *session) run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	// a blocked read only returns once the connection is closed
	stopClosing := context.AfterFunc(ctx, func() {
		goutils.UncheckedError(s.conn.Close())
	})
	defer func() {
		cancel()
		stopClosing()
		err = multierr.Combine(err, s.robot.motion.Stop(context.Background()))
		goutils.UncheckedError(s.conn.Close())
		s.logger.Infow("session closed")
	}()

	cfg := s.robot.cfg
	s.logger.Infow("connected", "peer", s.conn.RemoteAddr())
	if !goutils.SelectContextOrWait(ctx, cfg.Network.SettleDelay()) {
		return ctx.Err()
	}
	if err := s.register(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.sender != nil {
		streamer := telemetry.NewStreamer(
			s.robot.sensor, cfg.Identity, cfg.Sensor, cfg.Telemetry, s.sender, s.robot.clock, s.logger.Named("telemetry"))
		g.Go(func() error {
			return streamer.Run(gctx)
		})
	}
	defer func() {
		cancel()
		err = multierr.Combine(err, g.Wait())
	}()

	return s.serveCommands(operation.WithSessionID(ctx, s.id))
}

// register announces the bot's identity and waits for one reply, whose content is ignored.
func (s *session) register() error {
	identity := s.robot.cfg.Identity
	if err := s.conn.WriteFrame([]byte(identity)); err != nil {
		return errors.Wrap(err, "registering")
	}
	reply, err := s.conn.ReadFrame()
	switch {
	case err == nil:
		s.logger.Infow("registered", "identity", identity, "reply", string(reply))
	case errors.Is(err, link.ErrReceiveTimeout):
		s.logger.Warnw("no registration reply, continuing", "identity", identity)
	default:
		return errors.Wrap(err, "waiting for registration reply")
	}
	return nil
}

// serveCommands answers frames one at a time until the connection fails or ctx is done.
func (s *session) serveCommands(ctx context.Context) error {
	s.logger.Info("waiting for commands")
	for {
		frame, err := s.conn.ReadFrame()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err == nil:
		case errors.Is(err, link.ErrReceiveTimeout):
			continue
		case errors.Is(err, io.EOF):
			return errors.New("peer closed the connection")
		default:
			return err
		}

		cmd, err := protocol.Decode(frame)
		if err != nil {
			s.logger.Warnw("dropping malformed frame", "error", err, "frame", string(frame))
			continue
		}
		res := s.robot.commands.Handle(ctx, cmd)
		if err := s.conn.WriteFrame(encodeResult(res, s.logger)); err != nil {
			return err
		}
	}
}

// encodeResult renders res, falling back to a failure for the same command when res
// itself cannot be encoded, so every command is still answered.
func encodeResult(res protocol.CommandResult, logger logging.Logger) []byte {
	out, err := protocol.Encode(res)
	if err == nil {
		return out
	}
	logger.Errorw("cannot encode result, answering with a failure", "id", res.ID, "error", err)
	out, err = protocol.Encode(protocol.CommandResult{
		ID:     res.ID,
		Name:   res.Name,
		Status: protocol.Failure,
		Text:   fmt.Sprintf("internal error: %v", err),
	})
	if err != nil {
		// only ints and strings remain, which always encode
		panic(err)
	}
	return out
}
