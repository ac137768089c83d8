package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	redisClient    *redis.Client
	cleanups       []func() error
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	var app *App
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	clock := NewClock(config.IsProduction)

	// ensure the logs folder exists and Setup the logging module.
	err = os.MkdirAll(config.LogFolder, 0o700)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, clock)

	// Setup the connection to mongo, redis, boltDB and storage servers.
	mongoClient, err := GetMongoClient(config)
	if err != nil {
		return app, fmt.Errorf("failed to connect to mongo server: %s", err)
	}
	database := mongoClient.Database(config.Mongo.Database)
	bookStorage := NewMongoBookStorage(logger, database.Collection(config.Mongo.BooksCollection))
	ctx, cancel := context.WithTimeout(context.Background(), config.Mongo.ConnectTimeout)
	err = bookStorage.EnsureIndexes(ctx)
	cancel()
	if err != nil {
		return app, fmt.Errorf("failed to create books indexes: %s", err)
	}
	reviewStorage := NewMongoReviewStorage(logger, database.Collection(config.Mongo.ReviewsCollection))
	userStorage := NewMongoUserStorage(logger, database.Collection(config.Mongo.UsersCollection))

	redisClient, err := GetRedisClient(config)
	if err != nil {
		return app, fmt.Errorf("failed to connect to redis server: %s", err)
	}

	boltDBClient, err := GetBoltDBClient(config)
	if err != nil {
		return app, fmt.Errorf("failed to connect to boltDB server: %s", err)
	}
	bookArchive := NewBoltBookArchive(logger, &config.BoltDB, boltDBClient, clock)

	storageClient, err := GetStorageClient(config)
	if err != nil {
		return app, fmt.Errorf("failed to connect to storage server: %s", err)
	}

	// Setup the queue, its consumer and the api services and routing.
	idsHandler := NewIDsHandler()
	redisQueue := NewRedisQueue(redisClient)
	archiveConsumer := NewArchiveConsumer(logger, redisQueue, bookArchive)

	bookService := NewBookService(logger, config, clock, BookServiceDeps{
		Books:    bookStorage,
		Reviews:  reviewStorage,
		Users:    userStorage,
		Uploader: NewS3Uploader(logger, &config.Storage, storageClient, idsHandler),
		Queue:    redisQueue,
		Archive:  bookArchive,
	})
	apiService := NewAPIHandler(
		logger,
		config,
		NewStatistics(config, clock.Now()),
		clock,
		idsHandler,
		NewValidator(),
		bookService,
	)

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	// Build the api server definition.
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ConnContext:    SaveConnInContext,
	}

	archiveConsume := func(ctx context.Context) error {
		return archiveConsumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	}

	return &App{
		logger:      logger,
		config:      config,
		server:      srv,
		redisClient: redisClient,
		cleanups: []func() error{
			func() error { return mongoClient.Disconnect(context.Background()) },
			bookArchive.Close,
			flusher,
			logWriter.Close,
		},
		queueConsumers: []func(ctx context.Context) error{archiveConsume},
	}, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions in order.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		if err := f(); err != nil {
			fmt.Fprintln(os.Stderr, "error during app cleanup: ", err)
		}
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
		)
		err := app.server.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result. Closing the
// redis client unblocks the consumers waiting on the queues.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch err {
		case nil, http.ErrServerClosed:
			app.logger.Info("api server graceful shutdown succeeded")
		case context.DeadlineExceeded:
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		if err = app.redisClient.Close(); err != nil {
			app.logger.Error("failed to close redis client", zap.Error(err))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
