// The noughts command is a terminal client for the noughts and crosses game
// server. It logs in, then reads commands from stdin until the user quits or
// the server goes away.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/dcrodman/noughts/internal/client"
	"github.com/dcrodman/noughts/internal/core"
	"github.com/dcrodman/noughts/internal/core/debug"
	"github.com/dcrodman/noughts/internal/history"
	"github.com/dcrodman/noughts/internal/metrics"
	"github.com/dcrodman/noughts/internal/protocol"
	"github.com/dcrodman/noughts/internal/terminal"
	"github.com/dcrodman/noughts/internal/transport"
	"github.com/dcrodman/noughts/internal/transport/tcp"
	"github.com/dcrodman/noughts/internal/transport/ws"
)

func main() {
	flags := pflag.NewFlagSet("noughts", pflag.ExitOnError)
	configPath := flags.String("config", "./", "Path to the directory containing the config file")
	flags.StringP("username", "u", "", "Name to log in with")
	flags.String("server.host", "", "Hostname or IP address of the game server")
	flags.Int("server.port", 0, "Port of the game server")
	flags.String("server.transport", "", "Transport to use: tcp or websocket")
	flags.Duration("server.login_timeout", 0, "How long to wait for the login reply (0 waits forever)")
	flags.String("logging.log_level", "", "Minimum log level: debug, info, warn, error")
	flags.Bool("debugging.enabled", false, "Serve pprof and metrics on localhost")
	_ = flags.Parse(os.Args[1:])

	if err := run(*configPath, flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, flags *pflag.FlagSet) error {
	config, err := core.LoadConfig(configPath, onlyChanged(flags))
	if err != nil {
		return err
	}
	if config.Username == "" {
		return errors.New("no user name configured; pass --username")
	}

	log, err := core.NewLogger(config)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	if srv := debug.StartUtilities(config, log, registry); srv != nil {
		defer srv.Close()
	}

	// Leave the interface nil when history is off so the shell can tell.
	var store terminal.History
	opts := []client.Option{
		client.WithLogger(log),
		client.WithMetrics(metrics.New(registry)),
		client.WithInviteTTL(config.Invites.TTL),
		client.WithPacketLogging(config.Debugging.PacketLoggingEnabled),
	}
	results, err := history.Open(config)
	switch {
	case errors.Is(err, history.ErrDisabled):
	case err != nil:
		return err
	default:
		defer results.Close()
		store = results
		opts = append(opts, client.WithRecorder(results))
	}

	view := terminal.NewView(os.Stdout, protocol.DefaultBoardSize)
	c := client.New(newDialer(config), view, opts...)
	view.TrackSession(c)

	// Register a SIGTERM handler so that Ctrl-C disconnects cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go exitHandler(log, cancel, sigs)

	loginCtx := ctx
	if config.Server.LoginTimeout > 0 {
		var loginCancel context.CancelFunc
		loginCtx, loginCancel = context.WithTimeout(ctx, config.Server.LoginTimeout)
		defer loginCancel()
	}
	if err := c.Start(loginCtx, config.Username, config.Server.Host, config.Server.Port); err != nil {
		c.Disconnect()
		return err
	}
	defer c.Disconnect()
	log.Infof("connected to %s as %s", config.ServerAddress(), config.Username)

	shell := terminal.NewShell(c, view, store, log)
	err = shell.Run(ctx, os.Stdin, c.Done())
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, terminal.ErrConnectionLost):
		return errors.New("disconnected from server")
	default:
		return err
	}
}

func newDialer(config *core.Config) transport.Dialer {
	if config.Server.Transport == core.TransportWebsocket {
		return &ws.Dialer{Path: config.Server.WebsocketPath, HandshakeTimeout: config.Server.LoginTimeout}
	}
	return &tcp.Dialer{Timeout: config.Server.LoginTimeout}
}

// onlyChanged returns the subset of flags set on the command line so that
// unset flags do not shadow the config file.
func onlyChanged(flags *pflag.FlagSet) *pflag.FlagSet {
	changed := pflag.NewFlagSet(flags.Name(), pflag.ContinueOnError)
	flags.Visit(func(f *pflag.Flag) {
		if f.Name != "config" {
			changed.AddFlag(f)
		}
	})
	return changed
}

func exitHandler(log logrus.FieldLogger, cancelFn func(), c chan os.Signal) {
	<-c
	log.Info("shutting down")
	cancelFn()

	select {
	case <-c:
		fmt.Fprintln(os.Stderr, "hard exiting (killed)")
		os.Exit(1)
	case <-time.After(5 * time.Second):
		os.Exit(0)
	}
}
