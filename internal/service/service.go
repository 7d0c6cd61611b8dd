// Package service exposes the results scraper over http.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
	"ucdresults-backend/internal/components/assert"
	"ucdresults-backend/internal/components/chrono"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/internal/scrapers/ucd"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	report_service_results = "service.results"
	report_service_cache   = "service.cache"
	report_service_probe   = "service.probe"
	report_service_active  = "service.active-sessions"
)

var tracer = otel.Tracer("ucdresults.service")

// ResultsScraper is the part of ucd.Scraper the service needs.
type ResultsScraper interface {
	Scrape(ctx context.Context, creds ucd.Credentials) ([]ucd.AggregatedResult, error)
}

type PortalProber interface {
	Probe(ctx context.Context) (ucd.ProbeResult, error)
}

type LimitsConfig struct {
	// MaxSessions caps the number of browsers running at once.
	MaxSessions int64 `json:"max_sessions"`
	// StartsPerSecond caps how fast new browser sessions are started.
	StartsPerSecond float64 `json:"starts_per_second"`
	// QueueTimeout is how long a request may wait for a free session, in seconds.
	QueueTimeout int `json:"queue_timeout"`
	// RequestTimeout bounds a whole scrape, in seconds.
	RequestTimeout int `json:"request_timeout"`
}

func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxSessions:     4,
		StartsPerSecond: 1,
		QueueTimeout:    30,
		RequestTimeout:  300,
	}
}

type Options struct {
	Limits LimitsConfig
	Cache  CacheConfig
}

const scheduledProbeTimeout = time.Second * 30

var errThrottled = errors.New("too many concurrent requests, try again later")

type Service struct {
	scraper ResultsScraper
	prober  PortalProber
	cache   *resultCache
	tel     telemetry.API

	sessions       *semaphore.Weighted
	starts         *rate.Limiter
	queueTimeout   time.Duration
	requestTimeout time.Duration
	active         atomic.Int64
	lastProbe      atomic.Pointer[probeStatus]
}

func NewService(scraper ResultsScraper, prober PortalProber, opts Options, tel telemetry.API) *Service {
	assert.NotNil(scraper)
	assert.NotNil(prober)

	limits := opts.Limits
	defaults := DefaultLimits()
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = defaults.MaxSessions
	}
	if limits.StartsPerSecond <= 0 {
		limits.StartsPerSecond = defaults.StartsPerSecond
	}
	if limits.QueueTimeout <= 0 {
		limits.QueueTimeout = defaults.QueueTimeout
	}
	if limits.RequestTimeout <= 0 {
		limits.RequestTimeout = defaults.RequestTimeout
	}

	return &Service{
		scraper:        scraper,
		prober:         prober,
		cache:          newResultCache(opts.Cache),
		tel:            telemetry.NewScopedAPI("service", tel),
		sessions:       semaphore.NewWeighted(limits.MaxSessions),
		starts:         rate.NewLimiter(rate.Limit(limits.StartsPerSecond), 1),
		queueTimeout:   time.Duration(limits.QueueTimeout) * time.Second,
		requestTimeout: time.Duration(limits.RequestTimeout) * time.Second,
	}
}

// Register adds the service's routes to mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ucd/results", s.handleResults)
	mux.HandleFunc("GET /api/ucd/test", s.handleTest)
}

// Watch probes the portal on the cron schedule `spec` and keeps the latest
// outcome for the test endpoint.
func (s *Service) Watch(cron chrono.CronAPI, spec string) error {
	return cron.Cron(spec, s.probeScheduled)
}

func (s *Service) probeScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledProbeTimeout)
	defer cancel()

	result, err := s.prober.Probe(ctx)
	status := probeStatus{
		Result:    result,
		CheckedAt: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
		s.tel.ReportWarning(report_service_probe, err)
	}
	s.lastProbe.Store(&status)
}

// acquire waits for a free session slot and for the start rate limit.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	queueCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	err := s.sessions.Acquire(queueCtx, 1)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errThrottled
	}
	err = s.starts.Wait(queueCtx)
	if err != nil {
		s.sessions.Release(1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errThrottled
	}

	s.tel.ReportCount(report_service_active, s.active.Add(1))
	return func() {
		s.tel.ReportCount(report_service_active, s.active.Add(-1))
		s.sessions.Release(1)
	}, nil
}

// Results returns the results for creds, from the cache if the same
// credentials were used recently.
func (s *Service) Results(ctx context.Context, creds ucd.Credentials) ([]ucd.AggregatedResult, error) {
	ctx, span := tracer.Start(ctx, "Results")
	defer span.End()

	creds, err := creds.Validate()
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.get(creds); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return cached, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	results, err := s.scraper.Scrape(ctx, creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	err = s.cache.put(creds, results)
	if err != nil {
		s.tel.ReportWarning(report_service_cache, err)
	}
	return results, nil
}

type resultsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// resultRow is the flattened summary row the frontend consumes.
type resultRow struct {
	Term       string `json:"term"`
	Stage      string `json:"stage"`
	Year       string `json:"year"`
	Programme  string `json:"programme"`
	Major      string `json:"major"`
	ResultsUrl string `json:"results_url"`
}

type resultsResponse struct {
	Success bool                   `json:"success"`
	Data    []resultRow            `json:"data"`
	Message string                 `json:"message"`
	All     []ucd.AggregatedResult `json:"all"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type probeStatus struct {
	Result    ucd.ProbeResult `json:"result"`
	CheckedAt time.Time       `json:"checked_at"`
	Error     string          `json:"error,omitempty"`
}

type testResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Probe     *ucd.ProbeResult `json:"probe,omitempty"`
	LastProbe *probeStatus     `json:"last_probe,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func newResultsResponse(results []ucd.AggregatedResult) resultsResponse {
	data := make([]resultRow, len(results))
	for i, r := range results {
		data[i] = resultRow{
			Term:       r.Summary.Term,
			Stage:      r.Summary.Stage,
			Year:       r.Summary.Year,
			Programme:  r.Summary.Programme,
			Major:      r.Summary.Major,
			ResultsUrl: r.Summary.ResultsURL,
		}
	}
	if results == nil {
		results = []ucd.AggregatedResult{}
	}
	return resultsResponse{
		Success: true,
		Data:    data,
		Message: fmt.Sprintf("fetched %d result records", len(results)),
		All:     results,
	}
}

func (s *Service) handleResults(w http.ResponseWriter, r *http.Request) {
	requestId := uuid.NewString()
	w.Header().Set("x-request-id", requestId)

	var req resultsRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if err != nil {
		writeJson(w, http.StatusBadRequest, errorResponse{
			Message: "request body must be a json object with username and password",
			Error:   err.Error(),
		})
		return
	}

	results, err := s.Results(r.Context(), ucd.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "failed to fetch results from the ucd portal"
		switch {
		case errors.Is(err, ucd.ErrInvalidCredentialsInput):
			status = http.StatusBadRequest
			message = "username and password are required"
		case errors.Is(err, errThrottled):
			status = http.StatusTooManyRequests
			message = "the service is busy, try again later"
		case errors.Is(err, context.Canceled):
			// the client went away before the scrape finished
			s.tel.ReportWarning(report_service_results, requestId, "request cancelled", err)
		default:
			s.tel.ReportBroken(report_service_results, requestId, ucd.ErrorKind(err), err)
		}
		writeJson(w, status, errorResponse{
			Message: message,
			Error:   err.Error(),
		})
		return
	}

	writeJson(w, http.StatusOK, newResultsResponse(results))
}

func (s *Service) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("probe") != "1" {
		writeJson(w, http.StatusOK, testResponse{
			Success:   true,
			Message:   "ucd results service is running",
			LastProbe: s.lastProbe.Load(),
		})
		return
	}

	result, err := s.prober.Probe(r.Context())
	if err != nil {
		s.tel.ReportWarning(report_service_probe, err)
		writeJson(w, http.StatusServiceUnavailable, testResponse{
			Message: "ucd portal is not reachable",
			Probe:   &result,
			Error:   err.Error(),
		})
		return
	}
	writeJson(w, http.StatusOK, testResponse{
		Success: true,
		Message: "ucd portal is reachable",
		Probe:   &result,
	})
}
