// Package main is a stand-in for the server a hoverbot connects to. It accepts one bot,
// answers its registration, prints its telemetry, and sends it commands typed on stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/link"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/protocol"
	"go.viam.com/hoverbot/telemetry"
)

const (
	flagListen    = "listen"
	flagTelemetry = "telemetry"
	flagReply     = "reply"
	flagWait      = "wait"
	flagQuiet     = "quiet"
	flagDebug     = "debug"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "hoverctl",
		Usage: "accept a hoverbot connection and drive it from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagListen,
				Value: fmt.Sprintf(":%d", config.DefaultServerPort),
				Usage: "address to accept the bot's command connection on",
			},
			&cli.StringFlag{
				Name:  flagTelemetry,
				Value: fmt.Sprintf(":%d", config.DefaultTelemetryPort),
				Usage: "UDP address to receive telemetry on",
			},
			&cli.StringFlag{
				Name:  flagReply,
				Value: "OK",
				Usage: "registration reply; empty sends none",
			},
			&cli.DurationFlag{
				Name:  flagWait,
				Value: time.Minute,
				Usage: "how long to wait for each command's result",
			},
			&cli.BoolFlag{
				Name:  flagQuiet,
				Usage: "do not print telemetry",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := logging.NewLogger("hoverctl")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("hoverctl")
	}
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	packets, err := net.ListenPacket("udp", c.String(flagTelemetry))
	if err != nil {
		return errors.Wrap(err, "listening for telemetry")
	}
	listener, err := net.Listen("tcp", c.String(flagListen))
	if err != nil {
		goutils.UncheckedError(packets.Close())
		return errors.Wrap(err, "listening for the bot")
	}
	context.AfterFunc(ctx, func() {
		goutils.UncheckedError(packets.Close())
		goutils.UncheckedError(listener.Close())
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printTelemetry(packets, c.Bool(flagQuiet), c.App.Writer, logger)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		logger.Infow("waiting for a bot", "address", listener.Addr())
		nc, err := listener.Accept()
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accepting the bot")
		}
		conn := link.NewConn(nc, c.Duration(flagWait))
		defer func() {
			goutils.UncheckedError(conn.Close())
		}()
		stopClosing := context.AfterFunc(gctx, func() {
			goutils.UncheckedError(conn.Close())
		})
		defer stopClosing()

		identity, err := conn.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "reading registration")
		}
		logger.Infow("bot registered", "identity", string(identity), "address", conn.RemoteAddr())
		if reply := c.String(flagReply); reply != "" {
			if err := conn.WriteFrame([]byte(reply)); err != nil {
				return err
			}
		}
		err = drive(gctx, conn, c.App.Reader, c.App.Writer, logger)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

// drive sends one command per input line and prints the result before taking the next.
func drive(ctx context.Context, conn *link.Conn, in io.Reader, out io.Writer, logger logging.Logger) error {
	lines := make(chan string)
	// Scan cannot be interrupted, so the reader outlives a cancelled ctx until its next line.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	id := 0
	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		if len(line) == 0 {
			continue
		}
		id++
		cmd, err := parseLine(id, line)
		if err != nil {
			logger.Warnw("not sent", "error", err)
			continue
		}
		frame, err := protocol.EncodeCommand(cmd)
		if err != nil {
			return err
		}
		logger.Debugw("sending", "frame", string(frame))
		if err := conn.WriteFrame(frame); err != nil {
			return err
		}
		reply, err := conn.ReadFrame()
		if err != nil {
			return errors.Wrapf(err, "waiting for the result of command %d", id)
		}
		res, err := protocol.DecodeResult(reply)
		if err != nil {
			logger.Warnw("unreadable result", "error", err, "frame", string(reply))
			continue
		}
		fmt.Fprintf(out, "#%d %s %s result=%g %q\n", res.ID, res.Name, statusString(res.Status), res.Result, res.Text)
	}
}

func statusString(status protocol.Status) string {
	if status == protocol.Success {
		return color.GreenString("%s", status)
	}
	return color.RedString("%s", status)
}

func printTelemetry(packets net.PacketConn, quiet bool, out io.Writer, logger logging.Logger) {
	buf := make([]byte, 2048)
	for {
		n, from, err := packets.ReadFrom(buf)
		if err != nil {
			return
		}
		var rec telemetry.Record
		if err := json.Unmarshal(buf[:n], &rec); err != nil {
			logger.Debugw("ignoring datagram", "from", from, "error", err)
			continue
		}
		if !quiet {
			fmt.Fprintf(out, "[%s %.1fs] %s %d cm\n", rec.RobotID, rec.Timestamp, rec.Type, rec.DistanceCm)
		}
	}
}
