package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/multierr"

	"message-router/internal/binder"
	"message-router/internal/brokers"
	"message-router/internal/circuitbreaker"
	"message-router/internal/common/logging"
	"message-router/internal/common/retry"
	"message-router/internal/config"
	"message-router/internal/handlers"
	"message-router/internal/routing"
)

// App holds all the application dependencies
type App struct {
	Config   *config.Config
	Broker   brokers.Broker
	Breakers *circuitbreaker.Manager
	Resolver *routing.DestinationResolver
	Router   *routing.Router
	Input    *binder.Input
	Handlers *handlers.Handlers
	Logger   logging.Logger
}

// New creates the broker, the router and the inbound binding. Nothing is
// consumed until Start.
func New(ctx context.Context, cfg *config.Config, registry *brokers.Registry) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initializeBroker(ctx, registry); err != nil {
		return nil, err
	}

	if err := app.initializeRouting(); err != nil {
		_ = app.Cleanup()
		return nil, err
	}

	input, err := binder.NewInput(app.Broker, app.Router, cfg.InputConfig(), logging.GetGlobalLogger())
	if err != nil {
		_ = app.Cleanup()
		return nil, err
	}
	app.Input = input

	app.Handlers = handlers.New(app.Broker, app.Router, app.Input, app.Breakers, logging.GetGlobalLogger())
	return app, nil
}

// initializeBroker waits for the broker while it reports connection errors
func (app *App) initializeBroker(ctx context.Context, registry *brokers.Registry) error {
	brokerConfig, err := app.Config.BrokerConfig()
	if err != nil {
		return err
	}
	if err := brokerConfig.Validate(); err != nil {
		return err
	}

	retryConfig := app.Config.ConnectRetry()
	retryConfig.OnRetry = func(attempt int, delay time.Duration, err error) {
		app.Logger.Warn("Broker not reachable, retrying",
			logging.String("type", app.Config.BrokerType),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Err(err),
		)
	}

	err = retry.Do(ctx, retryConfig, func(context.Context) error {
		broker, err := registry.Create(app.Config.BrokerType, brokerConfig)
		if err != nil {
			return err
		}
		app.Broker = broker
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create %s broker: %w", app.Config.BrokerType, err)
	}

	app.Logger.Info("Broker initialized",
		logging.String("type", app.Config.BrokerType),
		logging.String("connection", brokerConfig.GetConnectionString()),
	)
	return nil
}

func (app *App) initializeRouting() error {
	routerConfig, err := app.Config.RouterConfig()
	if err != nil {
		return err
	}

	logger := logging.GetGlobalLogger()
	app.Breakers = circuitbreaker.NewManager(app.Config.CircuitBreakerConfig(), logger)
	endpoints := binder.NewEndpointFactory(app.Broker, app.Breakers, logger)
	app.Resolver = routing.NewDestinationResolver(endpoints, app.Config.AllowedDestinations())

	router, err := routing.NewRouter(routerConfig, app.Resolver, logger)
	if err != nil {
		return err
	}
	app.Router = router

	app.Logger.Info("Router initialized",
		logging.String("evaluator", router.Evaluator().Kind()),
		logging.Int("mappings", len(routerConfig.Mappings)),
		logging.String("default_destination", routerConfig.DefaultDestination),
		logging.Bool("resolution_required", routerConfig.ResolutionRequired),
		logging.Strings("dynamic_destinations", app.Config.AllowedDestinations()),
	)
	return nil
}

// Start subscribes the input; messages flow until ctx is cancelled
func (app *App) Start(ctx context.Context) error {
	return app.Input.Start(ctx)
}

// HTTPHandler returns the health and metrics routes
func (app *App) HTTPHandler() http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, app.Handlers, logging.GetGlobalLogger())
	return router
}

// Cleanup stops the script reload job and closes the broker
func (app *App) Cleanup() error {
	var err error
	if app.Router != nil {
		err = multierr.Append(err, app.Router.Close())
	}
	if app.Broker != nil {
		err = multierr.Append(err, app.Broker.Close())
	}
	return err
}
