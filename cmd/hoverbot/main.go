// Package main runs the bot: it builds the hardware from a config and keeps a session
// open with the peer until interrupted.
package main

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	// registers all components.
	_ "go.viam.com/hoverbot/components/register"
	"go.viam.com/hoverbot/config"
	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/robot"
)

var logger = logging.NewLogger("hoverbot")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=robot config file (JSON or YAML); defaults and HOVERBOT_* variables if unset"`
	Server     string `flag:"server,usage=peer host, overriding the config"`
	Identity   string `flag:"identity,usage=identity to register with, overriding the config"`
	Debug      bool   `flag:"debug,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := readConfig(argsParsed)
	if err != nil {
		return err
	}
	if argsParsed.Debug {
		cfg.Log.Level = "debug"
	}

	botLogger, closeLog, err := logging.NewFileLogger("hoverbot", cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, closeLog())
	}()
	logging.ReplaceGlobal(botLogger)
	botLogger.Debugw("config", "config", cfg.String())

	r, err := robot.New(ctx, cfg, botLogger)
	if err != nil {
		return errors.Wrap(err, "building robot")
	}
	defer func() {
		err = multierr.Combine(err, r.Close(context.Background()))
	}()

	utils.ContextMainReadyFunc(ctx)()
	return r.Run(ctx)
}

func readConfig(args Arguments) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigFile == "" {
		cfg, err = config.FromEnv()
	} else {
		cfg, err = config.Read(args.ConfigFile)
	}
	if err != nil {
		return nil, err
	}
	if args.Server != "" {
		cfg.Network.ServerHost = args.Server
	}
	if args.Identity != "" {
		cfg.Identity = args.Identity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
