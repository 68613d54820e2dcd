package main

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/zonasi/internal/config"
	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/store"
	"github.com/sells-group/zonasi/internal/zonation"
)

const maxBodyBytes = 1 << 20

// api serves ranking over an in-memory facility table loaded at startup.
type api struct {
	facilities  []facility.Facility
	defaults    zonation.Config
	model       string
	earthRadius float64
	concurrency int
	audit       store.FacilityStore // nil disables audit logging
	log         *zap.Logger
}

// rankOptions are the per-request overrides shared by single and batch ranking.
type rankOptions struct {
	RadiusKM       *float64        `json:"radius_km,omitempty"`
	TopK           *int            `json:"top_k,omitempty"`
	DistanceWeight *float64        `json:"distance_weight,omitempty"`
	QualityWeight  *float64        `json:"quality_weight,omitempty"`
	QualityCeiling *float64        `json:"quality_ceiling,omitempty"`
	Model          string          `json:"model,omitempty"`
	Filter         facility.Filter `json:"filter"`
}

type rankRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
	rankOptions
}

type batchRequest struct {
	Queries []geo.Point `json:"queries"`
	rankOptions
}

type rankResponse struct {
	*zonation.Result
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// facilityView is the JSON form of a facility; missing numbers are null.
type facilityView struct {
	ID            string   `json:"id"`
	NPSN          string   `json:"npsn,omitempty"`
	Name          string   `json:"name"`
	Level         string   `json:"level,omitempty"`
	Accreditation string   `json:"accreditation,omitempty"`
	QualityScore  *float64 `json:"quality_score"`
	Lat           *float64 `json:"lat"`
	Lon           *float64 `json:"lon"`
	Regency       string   `json:"regency,omitempty"`
	District      string   `json:"district,omitempty"`
	Status        string   `json:"status,omitempty"`
}

func viewFacility(f facility.Facility) facilityView {
	return facilityView{
		ID:            f.ID,
		NPSN:          f.NPSN,
		Name:          f.Name,
		Level:         f.Level,
		Accreditation: f.Accreditation,
		QualityScore:  finitePtr(f.QualityScore),
		Lat:           finitePtr(f.Position.Lat),
		Lon:           finitePtr(f.Position.Lon),
		Regency:       f.Regency,
		District:      f.District,
		Status:        f.Status,
	}
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (o rankOptions) config(defaults zonation.Config) zonation.Config {
	c := defaults
	if o.RadiusKM != nil {
		c.RadiusKM = *o.RadiusKM
	}
	if o.TopK != nil {
		c.TopK = *o.TopK
	}
	if o.DistanceWeight != nil {
		c.DistanceWeight = *o.DistanceWeight
	}
	if o.QualityWeight != nil {
		c.QualityWeight = *o.QualityWeight
	}
	if o.QualityCeiling != nil {
		c.QualityCeiling = *o.QualityCeiling
	}
	return c
}

// buildRouter wires the HTTP API.
func buildRouter(a *api, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(sc.RateLimitRPS, sc.RateLimitBurst))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "facilities": len(a.facilities)})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/rank", a.handleRank)
		r.Post("/rank/batch", a.handleRankBatch)
		r.Get("/summary", a.handleSummary)
		r.Get("/facilities", a.handleFacilities)
	})

	return r
}

func (a *api) ranker(model string) (*zonation.Ranker, error) {
	if model == "" {
		model = a.model
	}
	m, err := geo.NewDistanceModel(model, a.earthRadius)
	if err != nil {
		return nil, err
	}
	return zonation.NewRanker(m, zonation.WithLogger(a.log), zonation.WithConcurrency(a.concurrency)), nil
}

func (a *api) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lon == nil {
		respondError(w, http.StatusBadRequest, errorResponse{Error: "lat and lon are required"})
		return
	}

	ranker, err := a.ranker(req.Model)
	if err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := ranker.Rank(req.Filter.Apply(a.facilities), geo.Point{Lat: *req.Lat, Lon: *req.Lon}, req.config(a.defaults))
	if err != nil {
		respondRankError(w, err)
		return
	}
	a.record(r, res)

	respondJSON(w, http.StatusOK, rankResponse{Result: res, Message: noResultsMessage(res)})
}

func (a *api) handleRankBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		respondError(w, http.StatusBadRequest, errorResponse{Error: "queries must not be empty"})
		return
	}

	ranker, err := a.ranker(req.Model)
	if err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	results, err := ranker.RankMany(r.Context(), req.Filter.Apply(a.facilities), req.Queries, req.config(a.defaults))
	if err != nil {
		respondRankError(w, err)
		return
	}
	a.record(r, results...)

	out := make([]rankResponse, len(results))
	for i, res := range results {
		out[i] = rankResponse{Result: res, Message: noResultsMessage(res)}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (a *api) handleSummary(w http.ResponseWriter, r *http.Request) {
	top := facility.DefaultTopDistricts
	if v := r.URL.Query().Get("top_districts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, errorResponse{Error: "top_districts must be a positive integer"})
			return
		}
		top = n
	}
	respondJSON(w, http.StatusOK, facility.Summarize(queryFilter(r).Apply(a.facilities), top))
}

func (a *api) handleFacilities(w http.ResponseWriter, r *http.Request) {
	matched := queryFilter(r).Apply(a.facilities)

	offset, limit := 0, len(matched)
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, errorResponse{Error: "offset must be a non-negative integer"})
			return
		}
		offset = min(n, len(matched))
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	end := offset + min(limit, len(matched)-offset)

	views := make([]facilityView, 0, end-offset)
	for _, f := range matched[offset:end] {
		views = append(views, viewFacility(f))
	}
	respondJSON(w, http.StatusOK, map[string]any{"total": len(matched), "facilities": views})
}

// record writes audit entries; failures are logged and never fail the request.
func (a *api) record(r *http.Request, results ...*zonation.Result) {
	if a.audit == nil {
		return
	}
	for _, res := range results {
		if err := a.audit.LogRank(r.Context(), store.NewRankLog(res)); err != nil {
			a.log.Warn("api: audit rank failed", zap.Error(err))
		}
	}
}

// queryFilter reads repeated or comma-separated level, accreditation and
// regency query parameters.
func queryFilter(r *http.Request) facility.Filter {
	q := r.URL.Query()
	return facility.Filter{
		Levels:         splitParams(q["level"]),
		Accreditations: splitParams(q["accreditation"]),
		Regencies:      splitParams(q["regency"]),
	}
}

func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// respondRankError maps ranking errors to status codes: bad input is 400,
// anything else 500.
func respondRankError(w http.ResponseWriter, err error) {
	var cfgErr *zonation.InvalidConfigError
	var coordErr *geo.InvalidCoordinateError
	switch {
	case errors.As(err, &cfgErr):
		respondError(w, http.StatusBadRequest, errorResponse{Error: "invalid ranking config", Problems: cfgErr.Problems})
	case errors.As(err, &coordErr):
		respondError(w, http.StatusBadRequest, errorResponse{Error: coordErr.Error()})
	default:
		zap.L().Error("api: rank failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("api: marshal response", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, code int, body errorResponse) {
	respondJSON(w, code, body)
}

// rateLimit rejects requests beyond a shared token bucket. rps <= 0 disables it.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
