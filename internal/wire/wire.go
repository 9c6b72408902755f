// Package wire provides dependency injection for the safebridge application.
// It creates singleton services with lazy initialization from the loaded config.
package wire

import (
	"database/sql"
	"io"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	cliadapter "github.com/example/safebridge/internal/adapters/cli"
	"github.com/example/safebridge/internal/adapters/fixture"
	"github.com/example/safebridge/internal/adapters/httpapi"
	"github.com/example/safebridge/internal/adapters/mockars"
	"github.com/example/safebridge/internal/adapters/natsbus"
	"github.com/example/safebridge/internal/adapters/sqlite"
	"github.com/example/safebridge/internal/adapters/wsbus"
	"github.com/example/safebridge/internal/app"
	"github.com/example/safebridge/internal/config"
	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/db"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/metrics"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

var (
	settings = config.Default()
	logger   = logging.Discard()

	database         *sql.DB
	registry         *prometheus.Registry
	metricsSet       *metrics.Metrics
	backend          *httpapi.Client
	ars              *mockars.ARS
	telephony        secondary.Telephony
	events           secondary.EventChannel
	closers          []func() error
	handoffService   *app.HandoffServiceImpl
	reconcileService primary.ReconcileService
	searchService    primary.SearchService
	logService       primary.LogService
	once             sync.Once
)

// Configure sets the config and logger. It must be called before any
// accessor; later calls have no effect on already built services.
func Configure(cfg *config.Config, l *slog.Logger) {
	settings = cfg
	logger = logging.OrDiscard(l)
}

// Config returns the active configuration.
func Config() *config.Config { return settings }

// Logger returns the application logger.
func Logger() *slog.Logger { return logger }

// HandoffService returns the singleton HandoffService instance.
func HandoffService() primary.HandoffService {
	once.Do(initServices)
	return handoffService
}

// ReconcileService returns the singleton ReconcileService instance.
func ReconcileService() primary.ReconcileService {
	once.Do(initServices)
	return reconcileService
}

// SearchService returns the singleton SearchService instance.
func SearchService() primary.SearchService {
	once.Do(initServices)
	return searchService
}

// LogService returns the singleton LogService instance.
func LogService() primary.LogService {
	once.Do(initServices)
	return logService
}

// MockARS returns the in-process ARS, or nil when a telephony backend is used.
func MockARS() *mockars.ARS {
	once.Do(initServices)
	return ars
}

// Registry returns the prometheus registry holding the dispatch counters.
func Registry() *prometheus.Registry {
	once.Do(initServices)
	return registry
}

// NewDispatchController creates the controller of one case. Call Run on it.
func NewDispatchController(c dispatch.CaseInfo) *app.DispatchControllerImpl {
	once.Do(initServices)

	deps := app.DispatchDeps{
		Clock:     clock.New(),
		Telephony: telephony,
		Events:    events,
		Handoff:   handoffService,
		Decisions: sqlite.NewDecisionLogRepository(database),
		Metrics:   metricsSet,
		Logger:    logger,
	}
	if backend != nil {
		deps.Routes = httpapi.NewRouteService(backend)
	}

	return app.NewDispatchController(app.DispatchConfig{
		Case: c,
		Options: dispatch.Options{
			AutoDial:          settings.Dispatch.AutoDial,
			InterAttemptDelay: settings.Dispatch.InterAttemptDelay,
		},
		Policy:         timeoutPolicy(settings.Timeout),
		PollInterval:   settings.Dispatch.PollInterval,
		DialRetry:      app.RetryPolicy{Attempts: settings.Retry.DialAttempts, Interval: settings.Retry.DialInterval},
		ResyncInterval: settings.Dispatch.ReconcileInterval,
	}, deps)
}

// Close releases the database and push transport.
func Close() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	closers = nil
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	path := settings.Storage.Path
	if path == "" {
		p, err := db.DefaultPath()
		if err != nil {
			log.Fatalf("failed to resolve database path: %v", err)
		}
		path = p
	}
	conn, err := db.Open(path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	database = conn
	closers = append(closers, conn.Close)

	registry = prometheus.NewRegistry()
	metricsSet, err = metrics.New(registry)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	// Secondary adapters: the backend when configured, local stand-ins otherwise.
	var store secondary.AssignmentStore
	var search secondary.HospitalSearch
	if !settings.Offline() {
		backend = httpapi.NewClient(settings.Backend.URL, settings.Backend.Timeout)
		store = httpapi.NewAssignmentStore(backend)
		search = httpapi.NewHospitalSearch(backend)
	} else {
		store = sqlite.NewLocalAssignmentStore(database)
	}
	if settings.Backend.Fixture != "" {
		search = fixture.NewHospitalSearch(settings.Backend.Fixture)
	}
	if search == nil {
		search = unavailableSearch{}
	}

	if settings.Backend.MockARS || backend == nil {
		ars = mockars.New()
		telephony = ars
		events = ars
	} else {
		telephony = httpapi.NewTelephony(backend)
		events = pushChannel()
	}
	telephony = app.NewPacedTelephony(telephony, settings.Dispatch.DialPacing, settings.Dispatch.DialBurst)

	journal := sqlite.NewHandoffRepository(database)
	handoffService = app.NewHandoffService(store, journal, app.HandoffConfig{
		LookupAttempts: settings.Retry.SessionLookupAttempts,
		LookupInterval: settings.Retry.SessionLookupInterval,
	}, logger)
	reconcileService = app.NewReconcileService(journal, handoffService, clock.New(), settings.Dispatch.ReconcileInterval, logger)
	searchService = app.NewSearchService(search, app.RetryPolicy{
		Attempts: settings.Retry.SearchAttempts,
		Interval: settings.Retry.SearchInterval,
	}, logger)
	logService = app.NewLogService(sqlite.NewDecisionLogRepository(database))
}

// pushChannel builds the configured push transport. Failures degrade to
// polling only.
func pushChannel() secondary.EventChannel {
	switch settings.Push.Transport {
	case config.TransportWebsocket:
		wsURL := settings.Push.WebsocketURL
		if wsURL == "" {
			wsURL = websocketURL(settings.Backend.URL)
		}
		return wsbus.NewEventChannel(wsURL, logger)
	case config.TransportNATS:
		bus, err := natsbus.Connect(natsbus.Config{
			URL:     settings.Push.NATSURL,
			Name:    "safebridge",
			Subject: settings.Push.Subject,
		}, logger)
		if err != nil {
			logger.Warn("nats unavailable, relying on polling", "error", err)
			return nil
		}
		closers = append(closers, bus.Close)
		return bus
	}
	return nil
}

// websocketURL derives ws(s)://host/ws from the backend URL.
func websocketURL(backendURL string) string {
	u, err := url.Parse(backendURL)
	if err != nil {
		return backendURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func timeoutPolicy(t config.TimeoutConfig) dispatch.TimeoutPolicy {
	return dispatch.TimeoutPolicy{
		CharsPerSecond: t.CharsPerSecond,
		NarrationMin:   t.NarrationMin,
		NarrationMax:   t.NarrationMax,
		ResponseWindow: t.ResponseWindow,
		Min:            t.Min,
		Max:            t.Max,
	}
}

// DispatchAdapter returns a new DispatchAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func DispatchAdapter(service primary.DispatchService) *cliadapter.DispatchAdapter {
	return DispatchAdapterWithOutput(service, os.Stdout)
}

// DispatchAdapterWithOutput returns a new DispatchAdapter writing to the given output.
func DispatchAdapterWithOutput(service primary.DispatchService, out io.Writer) *cliadapter.DispatchAdapter {
	once.Do(initServices)
	return cliadapter.NewDispatchAdapter(service, searchService, out)
}

// HandoffAdapter returns a new HandoffAdapter writing to stdout.
func HandoffAdapter() *cliadapter.HandoffAdapter {
	once.Do(initServices)
	return cliadapter.NewHandoffAdapter(handoffService, reconcileService, os.Stdout)
}

// LogAdapter returns a new LogAdapter writing to stdout.
func LogAdapter() *cliadapter.LogAdapter {
	once.Do(initServices)
	return cliadapter.NewLogAdapter(logService, os.Stdout)
}
