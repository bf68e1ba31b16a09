package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/auth"
	"github.com/dmitrijs2005/assettrack/internal/client/catalog"
	"github.com/dmitrijs2005/assettrack/internal/client/config"
	"github.com/dmitrijs2005/assettrack/internal/client/datasets"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/routing"
	"github.com/dmitrijs2005/assettrack/internal/client/search"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/client/storage"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/dmitrijs2005/assettrack/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// sessionManager is the part of auth.Manager the terminal drives.
type sessionManager interface {
	State() auth.State
	Logout(ctx context.Context)
	Navigate(ctx context.Context, path string) bool
}

type accountService interface {
	Login(ctx context.Context, username string, password []byte) error
	Register(ctx context.Context, username string, password, confirm []byte) error
}

type datasetService interface {
	Latest(ctx context.Context) (*session.Dataset, error)
	List(ctx context.Context) ([]api.FileInfo, error)
	Upload(ctx context.Context, path string) (*api.FileInfo, error)
	Export(ctx context.Context, id int64) (string, error)
}

type catalogService interface {
	Load(ctx context.Context) error
	Conditions() []api.Condition
	Warehouses() []api.Warehouse
	ConditionNames() []string
	WarehouseNames() []string
	AddCondition(ctx context.Context, name string) (*api.Condition, error)
	DeleteCondition(ctx context.Context, id int64) error
	AddWarehouse(ctx context.Context, name string) (*api.Warehouse, error)
	DeleteWarehouse(ctx context.Context, id int64) error
}

type routingService interface {
	Load(ctx context.Context, date time.Time, user *session.UserProfile) error
	Date() time.Time
	Companies() []routing.Company
	Toggle(company string) bool
	SetSerial(id int64, serial string) error
	Scan(id int64, code string) error
	Save(ctx context.Context) (string, error)
	Reset()
}

// App is one terminal browsing context with everything it talks to.
type App struct {
	config   *config.Config
	log      logging.Logger
	metrics  *metrics.Metrics
	notifier notify.Notifier
	in       *bufio.Scanner
	out      io.Writer

	pages    *pages
	session  sessionManager
	accounts accountService
	datasets datasetService
	catalog  catalogService
	routes   routingService
	backend  search.Backend
	pointer  search.DatasetSource

	closers []func() error
}

// NewApp opens the session database, joins the session bus (Redis when
// configured) and wires the services for a fresh browsing context.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger, m *metrics.Metrics) (*App, error) {
	if log == nil {
		log = logging.Nop{}
	}
	a := &App{
		config:   c,
		log:      log,
		metrics:  m,
		notifier: notify.NewConsole(os.Stdout),
		in:       bufio.NewScanner(os.Stdin),
		out:      os.Stdout,
		pages:    newPages(auth.PathLanding),
	}

	db, err := storage.Open(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	bus, err := a.openBus(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	store := session.NewStore(db, bus, session.NewContextID(), log)
	mgr := auth.NewManager(ctx, auth.Options{
		Store:     store,
		Navigator: a.pages,
		Notifier:  a.notifier,
		Logger:    log.With("component", "auth"),
		Metrics:   m,
	})
	a.closers = append(a.closers, func() error { mgr.Close(); return nil })
	a.session = mgr

	client, err := api.New(api.Options{
		BaseURL:        c.ServerBaseURL,
		Timeout:        c.RequestTimeout,
		Tokens:         store,
		OnUnauthorized: mgr.Expire,
		Logger:         log.With("component", "api"),
		Metrics:        m,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	sink, err := newSink(ctx, c)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.accounts = auth.NewService(client, mgr, a.notifier, log)
	a.datasets = datasets.NewService(client, store, sink, a.notifier, log.With("component", "datasets"))
	a.catalog = catalog.NewService(client, a.notifier, log)
	a.routes = routing.NewService(client, a.notifier, log.With("component", "routing"))
	a.backend = client
	a.pointer = store
	return a, nil
}

// openBus returns the Redis relay when an address is configured and the
// in-process bus otherwise.
func (a *App) openBus(ctx context.Context) (session.Bus, error) {
	if a.config.RedisAddr == "" {
		return session.NewLocalBus(), nil
	}
	rc := redis.NewClient(&redis.Options{Addr: a.config.RedisAddr})
	bus, err := session.NewRedisBus(ctx, rc, "", a.log)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("session bus: %w", err)
	}
	a.closers = append(a.closers, rc.Close, bus.Close)
	return bus, nil
}

func newSink(ctx context.Context, c *config.Config) (datasets.Sink, error) {
	if c.S3.Enabled() {
		return datasets.NewS3Sink(ctx, c.S3)
	}
	return datasets.DirSink{Dir: c.ExportDir}, nil
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	printlnFn("Welcome to the asset tracking CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.in)
}

// Close releases everything NewApp opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.session != nil && a.session.State().IsAuthenticated
}

// status is the prompt suffix: current page and, when logged in, the user.
func (a *App) status() string {
	s := a.pages.Current()
	if st := a.session.State(); st.IsAuthenticated && st.User != nil {
		s = fmt.Sprintf("%s (%s)", s, st.User.Username)
	}
	return s
}
