package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ezchain-labs/ezchain-sim/app/viewer"
	"github.com/ezchain-labs/ezchain-sim/foundation/events"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/genesis"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/mempool"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/node"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/sim"
	"github.com/ezchain-labs/ezchain-sim/foundation/logger"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation and serve its trace/metrics over HTTP.",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	log, err := logger.New("EZCHAIN-SIM")
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		return err
	}
	return nil
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Sim struct {
			ParamsPath string `conf:"default:"`
			Seed       int64  `conf:"default:1"`
		}
		Web struct {
			Host            string        `conf:"default:0.0.0.0:8080"`
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "EZchain layered-ledger discrete-event simulator",
		},
	}

	const prefix = "EZCHAIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	fmt.Println(` ______ ____________ _           _         _____ _           `)
	fmt.Println(`|  ____|___  /  ____| |         (_)       / ____(_)          `)
	fmt.Println(`| |__     / /| |    | |__   __ _ _ _ __   | (___  _ _ __ ___  `)
	fmt.Println(`|  __|   / / | |    | '_ \ / _' | | '_ \   \___ \| | '_ ' _ \ `)
	fmt.Println(`| |____ / /__| |____| | | | (_| | | | | |  ____) | | | | | | |`)
	fmt.Println(`|______/_____|\_____|_| |_|\__,_|_|_| |_| |_____/|_|_| |_| |_|`)
	fmt.Print("\n")

	log.Infow("starting simulation", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Simulation parameters

	params := genesis.Default()
	if cfg.Sim.ParamsPath != "" {
		loaded, err := genesis.Load(cfg.Sim.ParamsPath)
		if err != nil {
			return fmt.Errorf("loading simulation parameters: %w", err)
		}
		params = loaded
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid simulation parameters: %w", err)
	}

	// =========================================================================
	// Event trace and driver

	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Publish(s)
	}

	peers := peer.NewSet()
	for i := 0; i < params.N; i++ {
		peers.Add(peer.NodeID(i))
	}

	pool := mempool.New()
	seedRnd := rand.New(rand.NewSource(cfg.Sim.Seed))
	driverRnd := rand.New(rand.NewSource(cfg.Sim.Seed + int64(params.N) + 1))
	driv := sim.New(driverRnd, params.NetworkDelta, params.SimDuration)

	nodes := make([]*node.Node, params.N)
	for i := 0; i < params.N; i++ {
		nodeRnd := rand.New(rand.NewSource(cfg.Sim.Seed + int64(i) + 1))

		n, err := node.New(node.Config{
			ID:        peer.NodeID(i),
			Params:    params,
			Sched:     driv,
			Bcast:     driv,
			Pool:      pool,
			Metrics:   metrics.New(),
			Peers:     peers,
			Rand:      nodeRnd,
			EvHandler: ev,
		})
		if err != nil {
			return fmt.Errorf("constructing node-%d: %w", i, err)
		}

		n.SeedValues(poisson(seedRnd, params.InitialValuesLambda), 0)
		n.Start()

		driv.Register(peer.NodeID(i), n)
		nodes[i] = n

		log.Infow("startup", "status", "node registered", "node", n.Name())
	}

	// =========================================================================
	// Start Viewer Service

	log.Infow("startup", "status", "initializing viewer API support")

	mux := viewer.Mux(viewer.Config{
		Log:      log,
		Evts:     evts,
		Snapshot: snapshotFunc(nodes),
	})

	server := http.Server{
		Addr:         cfg.Web.Host,
		Handler:      mux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "viewer api started", "host", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Run the simulation

	simErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "simulation started", "nodes", params.N, "duration", params.SimDuration)
		simErrors <- driv.Run()
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("viewer server error: %w", err)

	case err := <-simErrors:
		if err != nil {
			log.Errorw("simulation", "ERROR", err)
		}
		log.Infow("simulation", "status", "run complete", "events_delivered", driv.Delivered())

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)
	}

	log.Infow("shutdown", "status", "shutdown web socket channels")
	evts.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		server.Close()
		return fmt.Errorf("could not stop viewer service gracefully: %w", err)
	}

	return nil
}

func snapshotFunc(nodes []*node.Node) viewer.SnapshotFunc {
	return func() []viewer.NodeSnapshot {
		out := make([]viewer.NodeSnapshot, len(nodes))
		for i, n := range nodes {
			acBytes, ccBytes := n.Metrics().StorageBytes()
			out[i] = viewer.NodeSnapshot{
				Node:           n.Name(),
				Errors:         n.Metrics().Stats(),
				MeanCCPTNanos:  n.Metrics().MeanCCPT(),
				ACStorageBytes: acBytes,
				CCStorageBytes: ccBytes,
			}
		}
		return out
	}
}

// poisson draws a sample from a Poisson distribution with mean lambda,
// via Knuth's algorithm. Only used at startup to size each node's
// initial value holdings (spec §6: "InitialValuesLambda").
func poisson(rnd *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rnd.Float64()
		if p <= l {
			return k - 1
		}
	}
}
