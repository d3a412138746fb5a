package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/contagion/featureflag"
	contagionhttp "github.com/aukilabs/contagion/http"
	"github.com/aukilabs/contagion/history"
	"github.com/aukilabs/contagion/proximity"
	"github.com/aukilabs/contagion/quadtree"
	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/contagion/smoketest"
	"github.com/aukilabs/contagion/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

var (
	// The Contagion version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "contagion_info",
		Help:        "Contagion information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"CONTAGION_ADDR"                 help:"Listening address for observers and API requests."`
	AdminAddr          string        `cli:""        env:"CONTAGION_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"CONTAGION_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"CONTAGION_LOG_INDENT"           help:"Indent logs."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"CONTAGION_LOG_SUMMARY_INTERVAL" help:"The duration between each simulation and observer log summary."`
	FrameDuration      time.Duration `cli:""        env:"CONTAGION_FRAME_DURATION"       help:"The duration of a simulation tick. Zero runs ticks back to back."`
	MaxTicks           int           `cli:""        env:"CONTAGION_MAX_TICKS"            help:"The number of ticks to run. Zero runs until the server stops."`
	Seed               int64         `cli:""        env:"CONTAGION_SEED"                 help:"The random seed. Zero picks a seed from the current time."`
	Workers            int           `cli:""        env:"CONTAGION_WORKERS"              help:"The number of workers discovering neighbors."`
	PopulationSize     int           `cli:""        env:"CONTAGION_POPULATION_SIZE"      help:"The number of persons in the room."`
	InitialInfected    int           `cli:""        env:"CONTAGION_INITIAL_INFECTED"     help:"The number of persons infectious at start."`
	InfluenceRadius    float64       `cli:""        env:"CONTAGION_INFLUENCE_RADIUS"     help:"The distance within which persons can infect each other."`
	RoomSize           int           `cli:""        env:"CONTAGION_ROOM_SIZE"            help:"The side of the square room."`
	NodeCapacity       int           `cli:",hidden" env:"CONTAGION_NODE_CAPACITY"        help:"The number of persons a spatial index node holds before splitting."`
	MaxDepth           int           `cli:",hidden" env:"CONTAGION_MAX_DEPTH"            help:"The maximum depth of the spatial index."`
	HistoryPath        string        `cli:""        env:"CONTAGION_HISTORY_PATH"         help:"The SQLite file where runs are recorded. Empty disables history."`
	FeatureFlags       []string      `cli:",hidden" env:"CONTAGION_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		LogSummaryInterval: time.Minute,
		FrameDuration:      time.Second,
		Workers:            1,
		PopulationSize:     30,
		InitialInfected:    15,
		InfluenceRadius:    proximity.DefaultRadius,
		RoomSize:           800,
		NodeCapacity:       quadtree.DefaultNodeCapacity,
		MaxDepth:           quadtree.DefaultMaxDepth,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a contagion simulation server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	flags := featureflag.New(conf.FeatureFlags)
	simConf := simulationConfig(conf, flags)

	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()

	sim, err := simulation.New(simConf, rand.New(rand.NewSource(seed)))
	if err != nil {
		logs.Fatal(errors.New("creating simulation failed").Wrap(err))
	}

	runner := &simulation.Runner{
		Simulation:    sim,
		FrameDuration: conf.FrameDuration,
		MaxTicks:      uint32(conf.MaxTicks),
	}

	reportLogger := simulation.NewReportLogger(runID, conf.LogSummaryInterval)
	defer reportLogger.Close()
	runner.HandleReport(reportLogger.HandleReport)

	if conf.HistoryPath != "" && !flags.IsSet(featureflag.FlagDisableHistory) {
		store, err := history.Open(conf.HistoryPath)
		if err != nil {
			logs.Fatal(errors.New("opening history failed").Wrap(err))
		}
		defer store.Close()

		err = store.SaveRun(ctx, history.Run{
			ID:           runID,
			Seed:         seed,
			Config:       simConf,
			FeatureFlags: flags.List(),
			StartedAt:    time.Now(),
		})
		if err != nil {
			logs.Fatal(errors.New("recording run failed").Wrap(err))
		}

		recorder := history.NewRecorder(store, runID, time.Second*5)
		defer recorder.Close()
		runner.HandleReport(recorder.HandleReport)
	}

	observers := &websocket.Observers{
		RunID:              runID,
		LogSummaryInterval: conf.LogSummaryInterval,
	}
	defer observers.Close()

	var service http.ServeMux
	service.Handle("/health", contagionhttp.HandleWithCORS(http.HandlerFunc(contagionhttp.HandleHealthCheck)))
	service.Handle("/ready", contagionhttp.HandleWithCORS(contagionhttp.HandleReadyCheck(runner.Ready)))
	service.Handle("/version", contagionhttp.HandleWithCORS(contagionhttp.HandleVersion(version)))
	service.Handle("/status", contagionhttp.HandleWithCORS(contagionhttp.HandleStatus(contagionhttp.StatusOptions{
		RunID:     runID,
		Version:   version,
		Runner:    runner,
		Observers: observers.Len,
	})))
	service.Handle("/neighbors", contagionhttp.HandleWithCORS(contagionhttp.HandleNeighbors(sim)))

	flags.IfNotSet(featureflag.FlagDisableObserverStream, func() {
		runner.HandleReport(observers.HandleReport)
		service.Handle("/observe", contagionhttp.HandleWithCORS(observers.Handler(ctx)))
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", contagionhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", contagionhttp.HandleReadyCheck(runner.Ready))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		UserAgent: fmt.Sprintf("Contagion %s", version),
	}))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("run_id", runID).
		WithTag("seed", seed).
		WithTag("population_size", simConf.PopulationSize).
		WithTag("initial_infected", simConf.InitialInfected).
		WithTag("feature_flags", flags.List()).
		Info("starting contagion server")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx)
	})

	g.Go(func() error {
		contagionhttp.ListenAndServe(gctx,
			&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
				contagionhttp.MetricsPathFormatter)},
			&http.Server{Addr: conf.AdminAddr, Handler: &admin},
		)
		return nil
	})

	if err := g.Wait(); err != nil {
		logs.Warn(errors.New("simulation stopped").
			WithType(errors.Type(err)).
			WithTag("run_id", runID).
			Wrap(err))
	}
}

func simulationConfig(conf config, flags featureflag.FeatureFlag) simulation.Config {
	simConf := simulation.DefaultConfig()
	simConf.PopulationSize = conf.PopulationSize
	simConf.InitialInfected = conf.InitialInfected
	simConf.InfluenceRadius = conf.InfluenceRadius
	simConf.RoomSize = conf.RoomSize
	simConf.NodeCapacity = conf.NodeCapacity
	simConf.MaxDepth = conf.MaxDepth
	simConf.Workers = conf.Workers
	simConf.FeatureFlags = flags
	return simConf
}

func validateConfig(conf config) error {
	if conf.MaxTicks < 0 {
		return errors.New("max ticks is negative").
			WithTag("max_ticks", conf.MaxTicks)
	}

	if conf.FrameDuration < 0 {
		return errors.New("frame duration is negative").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	return nil
}
