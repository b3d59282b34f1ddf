// Command optimize is the driver CLI: it reads an algorithm's YAML
// configuration, builds the matching engine.Algorithm, runs it to
// completion, and exits 0 on a normal halt or nonzero on an
// unrecoverable error, per spec §6/§7. It also doubles as the
// `--client` networked worker entrypoint, dialing a running driver's
// internal/remote.Server instead of running a driver loop itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/niceyeti/genevo/internal/config"
	"github.com/niceyeti/genevo/internal/problems"
	"github.com/niceyeti/genevo/internal/registry"
	"github.com/niceyeti/genevo/internal/remote"
)

var (
	algMnemonic   *string
	configPath    *string
	clientMode    *bool
	clientAddr    *string
	clientBuffer  *string
	clientProblem *string
	clientOffset  *float64
	remoteAddr    *string
	parameterSpecFlag *string

	eaMaxIterations      *uint64
	eaMaxStallIterations *uint64
	eaMaxSeconds         *float64

	swarmMaxIterations      *uint64
	swarmMaxStallIterations *uint64
	swarmMaxSeconds         *float64

	scanMaxIterations      *uint64
	scanMaxStallIterations *uint64
	scanMaxSeconds         *float64

	gdMaxIterations      *uint64
	gdMaxStallIterations *uint64
	gdMaxSeconds         *float64
)

func init() {
	algMnemonic = flag.String("alg", "ea", "algorithm mnemonic: ea, swarm, scan, gd")
	configPath = flag.String("config", "./config.yaml", "path to the algorithm's YAML configuration file")

	clientMode = flag.Bool("client", false, "run as a remote worker instead of a driver")
	clientAddr = flag.String("clientAddr", "localhost:8090", "driver address to dial in --client mode")
	clientBuffer = flag.String("clientBuffer", "", "buffer pair id to drain in --client mode")
	clientProblem = flag.String("clientProblem", "parabola", "demo problem this --client worker evaluates")
	clientOffset = flag.Float64("clientOffset", 1.0, "offset parameter for the multiParabola demo problem")

	remoteAddr = flag.String("remoteAddr", "", "address to expose the remote-worker websocket server on when executor=broker; empty disables it")
	parameterSpecFlag = flag.String("parameterSpec", "", `parameter-scan grammar override, e.g. "d(0,-5,5,11),d(1,-5,5,11)"`)

	eaMaxIterations = flag.Uint64("eaMaxIterations", 0, "ea: override maxIteration (0 keeps the config value)")
	eaMaxStallIterations = flag.Uint64("eaMaxStallIterations", 0, "ea: override maxStallIteration")
	eaMaxSeconds = flag.Float64("eaMaxSeconds", 0, "ea: override maxSeconds")

	swarmMaxIterations = flag.Uint64("swarmMaxIterations", 0, "swarm: override maxIteration")
	swarmMaxStallIterations = flag.Uint64("swarmMaxStallIterations", 0, "swarm: override maxStallIteration")
	swarmMaxSeconds = flag.Float64("swarmMaxSeconds", 0, "swarm: override maxSeconds")

	scanMaxIterations = flag.Uint64("scanMaxIterations", 0, "scan: override maxIteration")
	scanMaxStallIterations = flag.Uint64("scanMaxStallIterations", 0, "scan: override maxStallIteration")
	scanMaxSeconds = flag.Float64("scanMaxSeconds", 0, "scan: override maxSeconds")

	gdMaxIterations = flag.Uint64("gdMaxIterations", 0, "gd: override maxIteration")
	gdMaxStallIterations = flag.Uint64("gdMaxStallIterations", 0, "gd: override maxStallIteration")
	gdMaxSeconds = flag.Float64("gdMaxSeconds", 0, "gd: override maxSeconds")

	flag.Parse()
}

var logger = log.Default()

// appCtx is the context every algorithm constructor's background
// goroutines (broker workers, remote/monitor servers) run under. It is
// assigned once at the top of runApp, before any registry.Constructor
// is ever invoked.
var appCtx context.Context

func runApp() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appCtx = ctx

	registerAlgorithms()

	if *clientMode {
		return runClient(ctx)
	}

	rawCfg, err := newConfigFor(*algMnemonic)
	if err != nil {
		return err
	}
	kind, err := config.LoadInto(*configPath, rawCfg)
	if err != nil {
		return err
	}
	if kind != *algMnemonic {
		return fmt.Errorf("optimize: config kind %q does not match --alg %q", kind, *algMnemonic)
	}
	applyCLIOverrides(*algMnemonic, rawCfg)

	alg, err := registry.Default().Build(*algMnemonic, rawCfg)
	if err != nil {
		return err
	}

	ec, mc, maximize := engineSettingsFor(rawCfg)
	store := checkpointStoreFor(*algMnemonic)
	eng := buildEngine(ctx, *algMnemonic, alg, ec, mc, maximize, store)

	best, iteration, err := eng.Optimize(ctx)
	if err != nil {
		return err
	}
	logger.Printf("optimize: %s halted at iteration %d, best fitness (raw=%v, transformed=%v)",
		*algMnemonic, iteration, best.BestRaw, best.BestTransformed)
	return nil
}

func runClient(ctx context.Context) error {
	if *clientBuffer == "" {
		return fmt.Errorf("optimize: --client requires --clientBuffer")
	}
	fitness, ok := problems.ByName(*clientProblem, *clientOffset)
	if !ok {
		return fmt.Errorf("optimize: --client: unknown problem %q", *clientProblem)
	}
	client := remote.NewClient(*clientAddr, *clientBuffer, fitness)
	return client.Run(ctx)
}

func newConfigFor(mnemonic string) (interface{}, error) {
	switch mnemonic {
	case "ea":
		return &EAConfig{}, nil
	case "swarm":
		return &SwarmConfig{}, nil
	case "scan":
		return &ScanConfig{}, nil
	case "gd":
		return &GDConfig{}, nil
	default:
		return nil, fmt.Errorf("optimize: unknown algorithm mnemonic %q (want one of: %v)", mnemonic, registry.Default().Mnemonics())
	}
}

// applyCLIOverrides lets the `--<alg>MaxIterations` family of flags
// override whatever the config file set, per spec §6.
func applyCLIOverrides(mnemonic string, rawCfg interface{}) {
	switch cfg := rawCfg.(type) {
	case *EAConfig:
		overrideEngineConfig(&cfg.EngineConfig, *eaMaxIterations, *eaMaxStallIterations, *eaMaxSeconds)
	case *SwarmConfig:
		overrideEngineConfig(&cfg.EngineConfig, *swarmMaxIterations, *swarmMaxStallIterations, *swarmMaxSeconds)
	case *ScanConfig:
		overrideEngineConfig(&cfg.EngineConfig, *scanMaxIterations, *scanMaxStallIterations, *scanMaxSeconds)
	case *GDConfig:
		overrideEngineConfig(&cfg.EngineConfig, *gdMaxIterations, *gdMaxStallIterations, *gdMaxSeconds)
	}
}

func overrideEngineConfig(ec *config.EngineConfig, maxIter, maxStall uint64, maxSeconds float64) {
	if maxIter > 0 {
		ec.MaxIteration = maxIter
	}
	if maxStall > 0 {
		ec.MaxStallIteration = maxStall
	}
	if maxSeconds > 0 {
		ec.MaxSeconds = maxSeconds
	}
}

func engineSettingsFor(rawCfg interface{}) (config.EngineConfig, MonitorConfig, bool) {
	switch cfg := rawCfg.(type) {
	case *EAConfig:
		return cfg.EngineConfig, cfg.MonitorConfig, cfg.Maximize
	case *SwarmConfig:
		return cfg.EngineConfig, cfg.MonitorConfig, cfg.Maximize
	case *ScanConfig:
		return cfg.EngineConfig, cfg.MonitorConfig, cfg.Maximize
	case *GDConfig:
		return cfg.EngineConfig, cfg.MonitorConfig, cfg.Maximize
	default:
		return config.EngineConfig{}, MonitorConfig{}, false
	}
}

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
