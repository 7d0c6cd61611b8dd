package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"ucdresults-backend/internal/components/chrono"
	"ucdresults-backend/internal/components/telemetry"
	"ucdresults-backend/internal/scrapers/ucd"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var sampleResults = []ucd.AggregatedResult{
	{
		Summary: ucd.SummaryRow{
			Term:       "Autumn 2023",
			Stage:      "S2",
			Year:       "2023/24",
			Programme:  "B.Sc. Computer Science",
			Major:      "Major",
			ResultsURL: "https://hub.ucd.ie/usis/W_HU_REPORTING.P_DISPLAY_REPORT?p_report=RG160-2R&p_parameters=T1",
		},
		Detail: ucd.ResultDetail{
			StudentInfo:  ucd.StudentInfo{Degree: "Bachelor of Science"},
			StageResults: []ucd.StageResult{{Major: "Computer Science", Stage: "2"}},
			CourseWork:   []ucd.CourseWorkRow{},
		},
	},
}

type fakeScraper struct {
	calls   atomic.Int64
	results []ucd.AggregatedResult
	err     error
	// block, when set, holds every scrape until it is closed.
	block chan struct{}
}

func (f *fakeScraper) Scrape(ctx context.Context, creds ucd.Credentials) ([]ucd.AggregatedResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeProber struct {
	err error
}

func (f fakeProber) Probe(ctx context.Context) (ucd.ProbeResult, error) {
	return ucd.ProbeResult{Url: "https://hub.ucd.ie/usis/W_WEB_WELCOME_PAGE", StatusCode: 200, LoginLink: f.err == nil}, f.err
}

func newTestServer(t testing.TB, scraper ResultsScraper, prober PortalProber, opts Options) (*Service, *httptest.Server) {
	return newRecordedServer(t, scraper, prober, opts, &telemetry.Recorder{})
}

func newRecordedServer(t testing.TB, scraper ResultsScraper, prober PortalProber, opts Options, tel *telemetry.Recorder) (*Service, *httptest.Server) {
	svc := NewService(scraper, prober, opts, tel)
	if svc.cache != nil {
		svc.cache.cost = bcrypt.MinCost
	}
	mux := http.NewServeMux()
	svc.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return svc, server
}

func postResults(t testing.TB, server *httptest.Server, body string) (int, map[string]any) {
	res, err := http.Post(server.URL+"/api/ucd/results", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&decoded))
	return res.StatusCode, decoded
}

func TestResultsSuccess(t *testing.T) {
	scraper := &fakeScraper{results: sampleResults}
	_, server := newTestServer(t, scraper, fakeProber{}, Options{})

	status, body := postResults(t, server, `{"username": "alice", "password": "secret"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, "fetched 1 result records", body["message"])

	expectedData := []any{map[string]any{
		"term":        "Autumn 2023",
		"stage":       "S2",
		"year":        "2023/24",
		"programme":   "B.Sc. Computer Science",
		"major":       "Major",
		"results_url": sampleResults[0].Summary.ResultsURL,
	}}
	if diff := cmp.Diff(expectedData, body["data"]); diff != "" {
		t.Fatal(diff)
	}

	all := body["all"].([]any)
	require.Len(t, all, 1)
	summary := all[0].(map[string]any)["summary"].(map[string]any)
	require.Equal(t, sampleResults[0].Summary.ResultsURL, summary["resultsUrl"])
	require.NotContains(t, summary, "results_url")

	detail := all[0].(map[string]any)["detail"].(map[string]any)
	require.Equal(t, []any{}, detail["courseWork"])
}

func TestResultsBadInput(t *testing.T) {
	scraper := &fakeScraper{results: sampleResults}
	_, server := newTestServer(t, scraper, fakeProber{}, Options{})

	testCases := []string{
		`{"username": "  ", "password": "secret"}`,
		`{"username": "alice"}`,
		`not json`,
		``,
	}
	for _, body := range testCases {
		status, decoded := postResults(t, server, body)
		require.Equal(t, http.StatusBadRequest, status, body)
		require.Equal(t, false, decoded["success"])
		require.NotEmpty(t, decoded["error"])
	}
	require.Equal(t, int64(0), scraper.calls.Load())
}

func TestResultsScrapeFailure(t *testing.T) {
	scraper := &fakeScraper{
		err: fmt.Errorf("%w: timed out after 1m30s", ucd.ErrAuthenticationTimeout),
	}
	_, server := newTestServer(t, scraper, fakeProber{}, Options{})

	status, body := postResults(t, server, `{"username": "alice", "password": "wrong"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, false, body["success"])
	require.Equal(t, "failed to fetch results from the ucd portal", body["message"])
	require.Contains(t, body["error"], "authenticated home page was not reached")
	require.NotContains(t, body, "data")
	require.NotContains(t, body, "all")
}

func TestResultsCache(t *testing.T) {
	scraper := &fakeScraper{results: sampleResults}
	_, server := newTestServer(t, scraper, fakeProber{}, Options{
		Cache: CacheConfig{Size: 8, Ttl: 60},
	})

	status, _ := postResults(t, server, `{"username": "alice", "password": "secret"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = postResults(t, server, `{"username": "ALICE", "password": "secret"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(1), scraper.calls.Load())

	// a different password never hits the cached entry
	status, _ = postResults(t, server, `{"username": "alice", "password": "other"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(2), scraper.calls.Load())
}

func TestResultsThrottled(t *testing.T) {
	scraper := &fakeScraper{results: sampleResults, block: make(chan struct{})}
	svc, server := newTestServer(t, scraper, fakeProber{}, Options{
		Limits: LimitsConfig{MaxSessions: 1, StartsPerSecond: 100, QueueTimeout: 1},
	})

	done := make(chan int)
	go func() {
		res, err := http.Post(server.URL+"/api/ucd/results", "application/json", bytes.NewBufferString(`{"username": "alice", "password": "secret"}`))
		if err != nil {
			done <- 0
			return
		}
		res.Body.Close()
		done <- res.StatusCode
	}()
	require.Eventually(t, func() bool {
		return svc.active.Load() == 1
	}, time.Second*5, time.Millisecond*10)

	status, body := postResults(t, server, `{"username": "bob", "password": "secret"}`)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, false, body["success"])

	close(scraper.block)
	require.Equal(t, http.StatusOK, <-done)
}

func TestTestEndpoint(t *testing.T) {
	_, server := newTestServer(t, &fakeScraper{}, fakeProber{}, Options{})

	res, err := http.Get(server.URL + "/api/ucd/test")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(server.URL + "/api/ucd/test?probe=1")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body testResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.True(t, body.Success)
	require.NotNil(t, body.Probe)
	require.True(t, body.Probe.LoginLink)

	_, broken := newTestServer(t, &fakeScraper{}, fakeProber{err: ucd.ErrNavigation}, Options{})
	res, err = http.Get(broken.URL + "/api/ucd/test?probe=1")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res, err = http.Post(server.URL+"/api/ucd/test", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

// manualCron runs jobs only when fire is called.
type manualCron struct {
	jobs []func()
}

func (c *manualCron) Cron(spec string, callback func()) error {
	c.jobs = append(c.jobs, callback)
	return nil
}

func (c *manualCron) fire() {
	for _, job := range c.jobs {
		job()
	}
}

var _ chrono.CronAPI = &manualCron{}

func TestScheduledProbe(t *testing.T) {
	svc, server := newTestServer(t, &fakeScraper{}, fakeProber{err: ucd.ErrNavigation}, Options{})

	getTest := func() testResponse {
		res, err := http.Get(server.URL + "/api/ucd/test")
		require.NoError(t, err)
		defer res.Body.Close()
		var body testResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		return body
	}
	require.Nil(t, getTest().LastProbe)

	cron := &manualCron{}
	require.NoError(t, svc.Watch(cron, "@every 5m"))
	cron.fire()

	body := getTest()
	require.True(t, body.Success)
	require.NotNil(t, body.LastProbe)
	require.Contains(t, body.LastProbe.Error, ucd.ErrNavigation.Error())
	require.False(t, body.LastProbe.CheckedAt.IsZero())
}

func TestResultsCancelledIsNotBroken(t *testing.T) {
	testCases := []struct {
		err    error
		broken bool
	}{
		{err: fmt.Errorf("scrape: %w", context.Canceled), broken: false},
		{err: fmt.Errorf("scrape: %w", ucd.ErrNavigation), broken: true},
	}

	for _, tc := range testCases {
		tel := &telemetry.Recorder{}
		_, server := newRecordedServer(t, &fakeScraper{err: tc.err}, fakeProber{}, Options{}, tel)

		status, _ := postResults(t, server, `{"username": "alice", "password": "secret"}`)
		require.Equal(t, http.StatusInternalServerError, status, tc.err.Error())
		require.Equal(t, tc.broken, tel.Has("broken", report_service_results), tc.err.Error())
		require.Equal(t, !tc.broken, tel.Has("warning", report_service_results), tc.err.Error())
	}
}
