package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"hue-rest-client/internal/adapters/input/simulator"
	"hue-rest-client/internal/adapters/output/hue"
	"hue-rest-client/internal/adapters/output/persistence"
	"hue-rest-client/internal/domain/model"
	"hue-rest-client/internal/domain/service"
	xlog "hue-rest-client/internal/log"
	"hue-rest-client/internal/telemetry"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "huerest:", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx)
}

type options struct {
	sim       bool
	timeout   time.Duration
	rateLimit float64
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "huerest",
		Short:         "Pair with a Hue bridge and control entertainment streaming",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.sim, "sim", false, "run against an in-process simulated bridge")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "bound on a single bridge exchange")
	root.PersistentFlags().Float64Var(&opts.rateLimit, "rate", 10, "maximum bridge requests per second")

	root.AddCommand(
		pairCmd(opts),
		areasCmd(opts),
		streamCmd(opts),
		stopCmd(opts),
		whitelistCmd(opts),
		revokeCmd(opts),
	)
	return root
}

// withBridge wires config, logging, tracing and a bridge client for the
// duration of fn.
func withBridge(ctx context.Context, opts *options, fn func(*service.BridgeService) error) error {
	return withBridgeSession(ctx, opts, true, fn)
}

func withBridgeSession(ctx context.Context, opts *options, autoPair bool, fn func(*service.BridgeService) error) error {
	configPath := "config.json"
	if os.Getenv("CONFIG_PATH") != "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	var bridge *simulator.Server
	if opts.sim {
		bridge = newDemoBridge()
		defer bridge.Close()
		configPath = filepath.Join(os.TempDir(), "huerest-sim.json")
	}

	configRepo := persistence.NewFileConfigRepository(configPath)
	cfg, err := service.NewConfigService(configRepo).GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bridge != nil {
		cfg.Address, cfg.Port = bridge.Endpoint()
		cfg.SetCredentials(model.Credentials{})
	}

	xlog.Configure(xlog.Config{Level: cfg.LogLevel})
	logger := xlog.WithComponent("cli")
	if cfg.Address == "" {
		return errors.New("no bridge address: set HUE_ADDRESS or address in " + configPath)
	}
	debug, err := hue.ParseDebugLevel(cfg.DebugLevel)
	if err != nil {
		return err
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint:       cfg.TraceEndpoint,
		ServiceName:    "huerest",
		ServiceVersion: version,
		SamplingRate:   1,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	rt, err := hue.Init(
		hue.WithTimeout(opts.timeout),
		hue.WithRateLimit(rate.Limit(opts.rateLimit), 1),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn().Err(err).Msg("runtime cleanup")
		}
	}()

	client, err := rt.NewClient(hue.ClientConfig{
		Address:    cfg.Address,
		Port:       cfg.Port,
		Username:   cfg.Username,
		ClientKey:  cfg.ClientKey,
		AppName:    cfg.AppName,
		DeviceName: cfg.DeviceName,
		Logger:     &logger,
		DebugLevel: debug,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	bridgeService := service.NewBridgeService(client, configRepo)
	// The simulated bridge starts empty, so every run pairs first.
	if bridge != nil && autoPair {
		if _, err := bridgeService.Pair(ctx); err != nil {
			return err
		}
	}
	return fn(bridgeService)
}

// describe adds the bridge's error name to refusals. Codes outside the
// documented set are flagged as unknown.
func describe(err error) string {
	var be *model.BridgeError
	if errors.As(err, &be) {
		if !be.Code.Known() {
			return fmt.Sprintf("%v [unknown bridge error %d]", err, int(be.Code))
		}
		return fmt.Sprintf("%v [%s]", err, be.Code)
	}
	return err.Error()
}

// newDemoBridge starts a simulated bridge with the link button pressed and a
// single entertainment area.
func newDemoBridge() *simulator.Server {
	s := simulator.NewServer()
	for _, id := range []string{"1", "2", "3"} {
		s.AddLight(id, "Hue color lamp "+id)
	}
	s.AddGroup(1, "Living room", "Room", "1", "2", "3")
	s.AddGroup(200, "TV area", "Entertainment", "1", "2")
	s.PressLinkButton()
	return s
}
