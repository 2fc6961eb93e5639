package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"selfish-mining-lab/internal/defense"
	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/observability"
	"selfish-mining-lab/internal/simulation"
	"selfish-mining-lab/internal/storage"
	"selfish-mining-lab/internal/verification"
)

var (
	errBadRequest = errors.New("bad request")
	errNoStore    = errors.New("no store configured")
)

// simulateRequest is the body of baseline and selfish simulations.
type simulateRequest struct {
	Alpha  float64 `json:"alpha"`
	Gamma  float64 `json:"gamma"`
	Rounds *int    `json:"rounds,omitempty"`
	Seed   *uint64 `json:"seed,omitempty"`
}

type defenseRequest struct {
	Alpha          float64  `json:"alpha"`
	GammaAttack    float64  `json:"gamma_attack"`
	GammaDefense   float64  `json:"gamma_defense"`
	Strength       *float64 `json:"defense_strength,omitempty"` // overrides gamma_defense
	Rounds         *int     `json:"rounds,omitempty"`
	DefenseEnabled *bool    `json:"defense_enabled,omitempty"` // default true
	Seed           *uint64  `json:"seed,omitempty"`
}

type compareRequest struct {
	Alpha       float64  `json:"alpha"`
	GammaAttack *float64 `json:"gamma_attack,omitempty"`
	Rounds      *int     `json:"rounds,omitempty"`
	Seed        *uint64  `json:"seed,omitempty"`
}

type replicateRequest struct {
	Alpha    float64 `json:"alpha"`
	Gamma    float64 `json:"gamma"`
	Rounds   *int    `json:"rounds,omitempty"`
	Replicas int     `json:"replicas"`
	Seed     *uint64 `json:"seed,omitempty"`
}

type asicRequest struct {
	Alpha      float64 `json:"alpha"`
	Multiplier float64 `json:"asic_multiplier"`
	Gamma      float64 `json:"gamma"`
	Rounds     *int    `json:"rounds,omitempty"`
	Seed       *uint64 `json:"seed,omitempty"`
}

type mevRequest struct {
	Alpha          float64  `json:"alpha"`
	Probability    float64  `json:"mev_extract_probability"`
	AvgMEVPerBlock *float64 `json:"avg_mev_per_block,omitempty"`
	Gamma          float64  `json:"gamma"`
	Rounds         *int     `json:"rounds,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"`
}

type latencyRequest struct {
	Alpha        float64  `json:"alpha"`
	DelayMs      float64  `json:"network_delay_ms"`
	BlockTimeSec *float64 `json:"block_time_sec,omitempty"`
	Gamma        float64  `json:"gamma"`
	Rounds       *int     `json:"rounds,omitempty"`
	Seed         *uint64  `json:"seed,omitempty"`
}

type crossChainRequest struct {
	Alpha     float64 `json:"alpha"`
	NumChains int     `json:"num_chains"`
	Gamma     float64 `json:"gamma"`
	Rounds    *int    `json:"rounds_per_chain,omitempty"`
	Seed      *uint64 `json:"seed,omitempty"`
}

// sweepRequest mirrors domain.SweepParams with an optional round count.
type sweepRequest struct {
	AlphaMin     float64 `json:"alpha_min"`
	AlphaMax     float64 `json:"alpha_max"`
	AlphaSteps   int     `json:"alpha_steps"`
	GammaAttack  float64 `json:"gamma_attack"`
	GammaDefense float64 `json:"gamma_defense"`
	Rounds       *int    `json:"rounds,omitempty"`
	Seed         *uint64 `json:"seed,omitempty"`
}

func (s *Server) sweepParams(req sweepRequest) domain.SweepParams {
	return domain.SweepParams{
		AlphaMin:     req.AlphaMin,
		AlphaMax:     req.AlphaMax,
		AlphaSteps:   req.AlphaSteps,
		GammaAttack:  req.GammaAttack,
		GammaDefense: req.GammaDefense,
		Rounds:       *s.rounds(req.Rounds),
		Seed:         req.Seed,
	}
}

type poolRequest struct {
	Alpha    float64 `json:"alpha"`
	NumPools int     `json:"num_pools"`
	Gamma    float64 `json:"gamma"`
	Rounds   *int    `json:"rounds,omitempty"`
	Seed     *uint64 `json:"seed,omitempty"`
}

// RunResponse is a persisted simulation with its derived metrics.
type RunResponse struct {
	RunID   string         `json:"run_id"`
	Kind    domain.RunKind `json:"kind"`
	Label   string         `json:"label"`
	Summary domain.Summary `json:"result"`
}

func newRunResponse(rec *domain.RunRecord) RunResponse {
	return RunResponse{
		RunID:   rec.RunID,
		Kind:    rec.Kind,
		Label:   rec.Label,
		Summary: rec.Result.Summarize(),
	}
}

// rounds applies the configured default when the field is absent. An
// explicit value, zero included, is passed through to validation.
func (s *Server) rounds(n *int) *int {
	if n == nil {
		d := s.cfg.Rounds
		return &d
	}
	return n
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Gamma = 0
	req.Rounds = s.rounds(req.Rounds)

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		rec, err := s.runner.Run(ctx, simulation.Request{
			Kind:   domain.RunKindBaseline,
			Label:  "honest",
			Alpha:  req.Alpha,
			Rounds: *req.Rounds,
			Seed:   req.Seed,
		})
		if err != nil {
			return nil, err
		}
		return newRunResponse(rec), nil
	})
}

func (s *Server) handleSelfish(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		rec, err := s.runner.Run(ctx, simulation.Request{
			Kind:   domain.RunKindSelfish,
			Label:  "selfish",
			Alpha:  req.Alpha,
			Gamma:  req.Gamma,
			Rounds: *req.Rounds,
			Seed:   req.Seed,
		})
		if err != nil {
			return nil, err
		}
		return newRunResponse(rec), nil
	})
}

func (s *Server) handleDefensePair(w http.ResponseWriter, r *http.Request) {
	var req defenseRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)
	if req.DefenseEnabled == nil {
		enabled := true
		req.DefenseEnabled = &enabled
	}

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		gammaDefense, label := req.GammaDefense, "with_defense"
		if req.Strength != nil {
			strategy, err := defense.FromStrength(req.GammaAttack, *req.Strength)
			if err != nil {
				return nil, err
			}
			gammaDefense, label = strategy.GammaDefense, strategy.Key
		}
		pair, err := s.driver.SimulateWithDefense(req.Alpha, req.GammaAttack, gammaDefense, *req.Rounds, *req.DefenseEnabled, req.Seed)
		if err != nil {
			return nil, err
		}
		s.record(ctx, domain.RunKindSelfish, "no_defense", pair.Undefended)
		if pair.DefenseEnabled {
			s.record(ctx, domain.RunKindDefended, label, pair.Defended)
		}
		return pair, nil
	})
}

func (s *Server) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var req replicateRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		return s.driver.Replicate(ctx, req.Alpha, req.Gamma, *req.Rounds, req.Replicas, req.Seed)
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var body sweepRequest
	if !s.decode(w, r, &body) {
		return
	}
	req := s.sweepParams(body)

	// Unseeded sweeps derive point seeds from alpha, so they are
	// deterministic too.
	s.serve(w, r, req, true, func(ctx context.Context) (any, error) {
		res, err := s.driver.ParameterSweep(ctx, req)
		if err != nil {
			return nil, err
		}
		s.persistSweep(ctx, res)
		return res, nil
	})
}

func (s *Server) handleDefenseStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.driver.Strategies())
}

func (s *Server) handleCompareDefenses(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)
	if req.GammaAttack == nil {
		g := s.cfg.DefenseComparisonGamma
		req.GammaAttack = &g
	}
	if req.Seed == nil {
		seed := s.cfg.DefenseComparisonSeed
		req.Seed = &seed
	}

	s.serve(w, r, req, true, func(ctx context.Context) (any, error) {
		return s.driver.CompareDefenses(ctx, req.Alpha, *req.GammaAttack, *req.Rounds, req.Seed)
	})
}

func (s *Server) handleASIC(w http.ResponseWriter, r *http.Request) {
	var req asicRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		res, err := s.overlay.ASIC(req.Alpha, req.Multiplier, req.Gamma, *req.Rounds, req.Seed)
		if err != nil {
			return nil, err
		}
		s.recordOverlay(ctx, fmt.Sprintf("asic x%g", req.Multiplier), res)
		return res, nil
	})
}

func (s *Server) handleMEV(w http.ResponseWriter, r *http.Request) {
	var req mevRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)
	if req.AvgMEVPerBlock == nil {
		v := s.cfg.Analysis.AvgMEVPerBlock
		req.AvgMEVPerBlock = &v
	}

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		res, err := s.overlay.MEV(req.Alpha, req.Probability, *req.AvgMEVPerBlock, req.Gamma, *req.Rounds, req.Seed)
		if err != nil {
			return nil, err
		}
		s.recordOverlay(ctx, fmt.Sprintf("mev p=%g", req.Probability), res)
		return res, nil
	})
}

func (s *Server) handleLatency(w http.ResponseWriter, r *http.Request) {
	var req latencyRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)
	if req.BlockTimeSec == nil {
		v := s.cfg.Analysis.BlockTimeSec
		req.BlockTimeSec = &v
	}

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		res, err := s.overlay.Latency(req.Alpha, req.DelayMs, *req.BlockTimeSec, req.Gamma, *req.Rounds, req.Seed)
		if err != nil {
			return nil, err
		}
		s.recordOverlay(ctx, fmt.Sprintf("latency %gms", req.DelayMs), res)
		return res, nil
	})
}

func (s *Server) handleCrossChain(w http.ResponseWriter, r *http.Request) {
	var req crossChainRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		res, err := s.overlay.CrossChain(ctx, req.Alpha, req.NumChains, req.Gamma, *req.Rounds, req.Seed)
		if err != nil {
			return nil, err
		}
		s.recordOverlay(ctx, fmt.Sprintf("crosschain n=%d", req.NumChains), res)
		return res, nil
	})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	var req poolRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Rounds = s.rounds(req.Rounds)

	s.serve(w, r, req, req.Seed != nil, func(ctx context.Context) (any, error) {
		res, err := s.overlay.PoolCooperation(req.Alpha, req.NumPools, req.Gamma, *req.Rounds, req.Seed)
		if err != nil {
			return nil, err
		}
		s.recordOverlay(ctx, fmt.Sprintf("pool n=%d", req.NumPools), res)
		return res, nil
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runStore == nil {
		writeError(w, errNoStore)
		return
	}

	var (
		runs []*domain.RunRecord
		err  error
	)
	if kind := domain.RunKind(r.URL.Query().Get("kind")); kind != "" {
		if !kind.IsValid() {
			writeError(w, fmt.Errorf("%w: unknown kind %q", errBadRequest, kind))
			return
		}
		runs, err = s.runStore.GetByKind(r.Context(), kind)
	} else {
		runs, err = s.runStore.GetAll(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]RunResponse, len(runs))
	for i, rec := range runs {
		out[i] = newRunResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runStore == nil {
		writeError(w, errNoStore)
		return
	}
	rec, err := s.runStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(rec))
}

func (s *Server) handleVerifyRun(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		writeError(w, errNoStore)
		return
	}
	res, err := s.verifier.VerifyRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSweepPoints(w http.ResponseWriter, r *http.Request) {
	if s.sweepPointStore == nil {
		writeError(w, errNoStore)
		return
	}
	points, err := s.sweepPointStore.GetBySweepID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleSweepOptimal(w http.ResponseWriter, r *http.Request) {
	if s.sweepPointStore == nil {
		writeError(w, errNoStore)
		return
	}
	point, err := s.sweepPointStore.GetOptimal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, point)
}

// decode reads a JSON body into dst, rejecting unknown fields.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
		return false
	}
	return true
}

// serve runs compute and writes its JSON result. Cacheable responses are
// keyed by path and the effective request, defaults applied.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, req any, cacheable bool, compute func(ctx context.Context) (any, error)) {
	var key string
	if cacheable {
		b, err := json.Marshal(req)
		if err != nil {
			writeError(w, err)
			return
		}
		key = r.URL.Path + "\n" + string(b)

		body, ok := s.cache.Get(key)
		observability.RecordCacheLookup(ok)
		if ok {
			w.Header().Set("X-Cache", "hit")
			writeBody(w, http.StatusOK, body)
			return
		}
	}

	res, err := compute(r.Context())
	if err != nil {
		s.log.WithError(err).WithField("path", r.URL.Path).Debug("request failed")
		writeError(w, err)
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		writeError(w, err)
		return
	}
	if cacheable {
		s.cache.Add(key, body)
		w.Header().Set("X-Cache", "miss")
	}
	writeBody(w, http.StatusOK, body)
}

// record persists a simulation. Failures are logged only.
func (s *Server) record(ctx context.Context, kind domain.RunKind, label string, res domain.SimulationResult) {
	if s.runStore == nil {
		return
	}
	if _, err := s.runner.Record(ctx, kind, label, res); err != nil {
		s.log.WithError(err).WithField("label", label).Warn("persist run failed")
	}
}

func (s *Server) recordOverlay(ctx context.Context, label string, res domain.OverlayResult) {
	s.record(ctx, res.Kind(), label, res.Simulation())
}

func (s *Server) persistSweep(ctx context.Context, res *domain.SweepResult) {
	if s.sweepPointStore == nil {
		return
	}
	records := make([]*domain.SweepPointRecord, len(res.Points))
	for i, pt := range res.Points {
		records[i] = &domain.SweepPointRecord{SweepID: res.SweepID, Point: pt}
	}
	if err := s.sweepPointStore.InsertBulk(ctx, records); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.log.WithError(err).WithField("sweep_id", res.SweepID).Warn("persist sweep points failed")
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, simulation.ErrUnsupportedKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, verification.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoStore):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusBadRequest && !errors.Is(err, errBadRequest) {
		observability.RecordInvalidParameter("api")
	}
	writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, code, body)
}

func writeBody(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
