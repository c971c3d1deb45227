// Package e2e boots complete mazebench instances for end-to-end
// testing: a per-test Postgres schema, the real trigger queue, worker
// pool, turn-loop scheduler, tool dispatcher, and the HTTP API on a
// random port. Only the chat backend is mocked, at the HTTP boundary,
// speaking the local-chat wire protocol.
package e2e

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/mazebench/mazebench/pkg/api"
	"github.com/mazebench/mazebench/pkg/config"
	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/queue"
	"github.com/mazebench/mazebench/pkg/store"
	"github.com/mazebench/mazebench/test/util"
)

// testModelName is the model every e2e trigger runs against; the
// harness registers it under the local-chat provider pointing at the
// mock backend.
const testModelName = "qwen3:8b"

// TestApp is one running mazebench replica wired to test infrastructure.
type TestApp struct {
	Config     *config.Config
	Store      *store.Store
	Pool       *pgxpool.Pool
	Chat       *MockChatBackend
	WorkerPool *queue.WorkerPool
	Server     *api.Server

	// BaseURL is the API root, e.g. "http://127.0.0.1:54321".
	BaseURL string

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	workerCount   int
	maxConcurrent int
	sweep         *config.SweepDefaults
	settings      *config.ModelSettings
	queueTune     func(*config.QueueConfig)
	podID         string
	pool          *pgxpool.Pool
	chat          *MockChatBackend
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithWorkerCount sets the number of queue workers. Zero starts the
// pool with only its recovery loop, for janitor-focused tests.
func WithWorkerCount(n int) TestAppOption {
	return func(c *testAppConfig) { c.workerCount = n }
}

// WithMaxConcurrentExperiments sets the global in-flight experiment cap.
func WithMaxConcurrentExperiments(n int) TestAppOption {
	return func(c *testAppConfig) { c.maxConcurrent = n }
}

// WithSweepDefaults replaces the sweep-level experiment parameters
// (budgets, recall cooldown, vision range).
func WithSweepDefaults(sweep *config.SweepDefaults) TestAppOption {
	return func(c *testAppConfig) { c.sweep = sweep }
}

// WithModelSettings replaces the settings registered for the test model
// (rate limit, request timeout, token pricing).
func WithModelSettings(settings *config.ModelSettings) TestAppOption {
	return func(c *testAppConfig) { c.settings = settings }
}

// WithQueueTuning mutates the queue config after the test defaults are
// applied (visibility timeout, delivery attempts, orphan intervals).
func WithQueueTuning(tune func(*config.QueueConfig)) TestAppOption {
	return func(c *testAppConfig) { c.queueTune = tune }
}

// WithPodID overrides the auto-generated pod identity. Required for
// multi-replica tests so each replica claims under its own name.
func WithPodID(id string) TestAppOption {
	return func(c *testAppConfig) { c.podID = id }
}

// WithSharedInfra points the app at another app's database schema and
// chat backend, creating a second replica of the same deployment.
func WithSharedInfra(other *TestApp) TestAppOption {
	return func(c *testAppConfig) {
		c.pool = other.Pool
		c.chat = other.Chat
	}
}

// NewTestApp creates and starts a full mazebench test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{workerCount: 1}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.maxConcurrent == 0 {
		tc.maxConcurrent = tc.workerCount
	}
	if tc.sweep == nil {
		tc.sweep = defaultTestSweep()
	}
	if tc.settings == nil {
		tc.settings = defaultTestModelSettings()
	}
	if tc.chat == nil {
		tc.chat = NewMockChatBackend(t)
	}
	if tc.pool == nil {
		tc.pool = util.SetupTestPool(t)
	}

	st := store.New(tc.pool)

	queueCfg := &config.QueueConfig{
		WorkerCount:              tc.workerCount,
		MaxConcurrentExperiments: tc.maxConcurrent,
		PollInterval:             100 * time.Millisecond,
		PollIntervalJitter:       50 * time.Millisecond,
		VisibilityTimeout:        time.Minute,
		MaxDeliveryAttempts:      3,
		HeartbeatInterval:        time.Second,
		GracefulShutdownTimeout:  10 * time.Second,
		OrphanDetectionInterval:  time.Minute,
		OrphanThreshold:          time.Minute,
	}
	if tc.queueTune != nil {
		tc.queueTune(queueCfg)
	}

	cfg := &config.Config{
		Sweep:       tc.sweep,
		SweepSource: config.NewStaticSweepSource(tc.sweep),
		Queue:       queueCfg,
		API:         &config.APIConfig{},
		Retention:   config.DefaultRetentionConfig(),
		Providers: config.NewProviderRegistry(map[models.Provider]*config.ProviderConfig{
			models.ProviderLocalChat: {
				BaseURL: tc.chat.URL(),
				Models: map[string]*config.ModelSettings{
					testModelName: tc.settings,
				},
			},
		}),
	}

	podID := tc.podID
	if podID == "" {
		podID = fmt.Sprintf("e2e-%s", t.Name())
	}

	executor := queue.NewExperimentExecutor(cfg, st)
	workerPool := queue.NewWorkerPool(podID, st, cfg.Queue, executor)
	require.NoError(t, workerPool.Start(context.Background()))

	server := api.NewServer(cfg, st, workerPool)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = server.StartWithListener(ln)
	}()

	app := &TestApp{
		Config:     cfg,
		Store:      st,
		Pool:       tc.pool,
		Chat:       tc.chat,
		WorkerPool: workerPool,
		Server:     server,
		BaseURL:    fmt.Sprintf("http://%s", ln.Addr().String()),
		t:          t,
	}

	// Cleanup in reverse creation order. Workers drain their current
	// trigger before exiting, so every scenario must script its runs to
	// a terminal state.
	t.Cleanup(func() {
		workerPool.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	return app
}

// defaultTestSweep keeps budgets small enough that a runaway experiment
// still terminates inside the poll window.
func defaultTestSweep() *config.SweepDefaults {
	return &config.SweepDefaults{
		RecallInterval:     2,
		MaxRecallActions:   10,
		MaxMoves:           50,
		MaxDurationMinutes: 5,
		MaxActionsPerTurn:  5,
		VisionRange:        2,
	}
}

// defaultTestModelSettings removes real-world pacing: 6000 RPM means the
// limiter never makes a test wait.
func defaultTestModelSettings() *config.ModelSettings {
	return &config.ModelSettings{
		RateLimitRPM:       6000,
		RequestTimeout:     5 * time.Second,
		MaxTokens:          512,
		CostPer1KInputUSD:  0.01,
		CostPer1KOutputUSD: 0.03,
	}
}
