// Package api serves the simulation operations as JSON over HTTP.
//
// Seeded requests are deterministic, so their encoded responses are kept
// in an LRU cache keyed by path and effective request. Sweep progress is
// streamed over a websocket at /ws/sweep.
package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"selfish-mining-lab/internal/config"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/overlay"
	"selfish-mining-lab/internal/simulation"
	"selfish-mining-lab/internal/storage"
	"selfish-mining-lab/internal/sweep"
	"selfish-mining-lab/internal/verification"
)

// DefaultCacheSize is the number of cached responses.
const DefaultCacheSize = 512

// Server holds the simulation components behind the HTTP handlers.
type Server struct {
	cfg config.ModelConfig

	runner  *simulation.Runner
	driver  *sweep.Driver
	overlay *overlay.Engine

	runStore        storage.RunStore        // optional
	sweepPointStore storage.SweepPointStore // optional
	verifier        *verification.ReplayVerifier

	cache    *lru.Cache[string, []byte]
	upgrader websocket.Upgrader

	writeTimeout time.Duration
	log          logrus.FieldLogger
}

// Options for creating Server.
type Options struct {
	Config config.ModelConfig

	RunStore        storage.RunStore
	SweepPointStore storage.SweepPointStore

	CacheSize    int                // default: DefaultCacheSize
	WriteTimeout time.Duration      // websocket write deadline, default 10s
	Logger       logrus.FieldLogger // default: discards output
}

// NewServer creates a Server from a validated model config.
func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sim, err := cfg.Simulator()
	if err != nil {
		return nil, err
	}

	driver, err := sweep.NewDriver(sweep.DriverOptions{
		Simulator:  sim,
		Workers:    cfg.Workers,
		Strategies: cfg.Defenses,
	})
	if err != nil {
		return nil, err
	}

	ovCfg := cfg.Overlay
	if ovCfg.Workers == 0 {
		ovCfg.Workers = cfg.Workers
	}
	engine, err := overlay.NewEngine(sim, ovCfg)
	if err != nil {
		return nil, err
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	s := &Server{
		cfg: cfg,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			Simulator: sim,
			RunStore:  opts.RunStore,
		}),
		driver:          driver,
		overlay:         engine,
		runStore:        opts.RunStore,
		sweepPointStore: opts.SweepPointStore,
		cache:           cache,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		writeTimeout: writeTimeout,
		log:          log.WithField("component", "api"),
	}
	if opts.RunStore != nil {
		s.verifier = verification.NewReplayVerifier(opts.RunStore)
	}
	return s, nil
}

// Driver returns the sweep driver backing the server.
func (s *Server) Driver() *sweep.Driver {
	return s.driver
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	// Simulations
	mux.HandleFunc("POST /v1/simulate/baseline", s.handleBaseline)
	mux.HandleFunc("POST /v1/simulate/selfish", s.handleSelfish)
	mux.HandleFunc("POST /v1/simulate/defense", s.handleDefensePair)
	mux.HandleFunc("POST /v1/replicate", s.handleReplicate)

	// Sweeps and defenses
	mux.HandleFunc("POST /v1/sweep", s.handleSweep)
	mux.HandleFunc("GET /v1/defenses", s.handleDefenseStrategies)
	mux.HandleFunc("POST /v1/defenses/compare", s.handleCompareDefenses)

	// Attack overlays
	mux.HandleFunc("POST /v1/overlays/asic", s.handleASIC)
	mux.HandleFunc("POST /v1/overlays/mev", s.handleMEV)
	mux.HandleFunc("POST /v1/overlays/latency", s.handleLatency)
	mux.HandleFunc("POST /v1/overlays/crosschain", s.handleCrossChain)
	mux.HandleFunc("POST /v1/overlays/pool", s.handlePool)

	// Stored data
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/verify", s.handleVerifyRun)
	mux.HandleFunc("GET /v1/sweeps/{id}/points", s.handleSweepPoints)
	mux.HandleFunc("GET /v1/sweeps/{id}/optimal", s.handleSweepOptimal)

	// Streaming
	mux.HandleFunc("GET /ws/sweep", s.handleSweepStream)

	return s.logRequests(mux)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The upgrade hijacks the raw writer.
		if r.URL.Path == "/ws/sweep" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.status,
			"seconds": time.Since(start).Seconds(),
		}).Debug("request")
	})
}
