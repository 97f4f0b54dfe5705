package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/todo-api/config"
	"github.com/example/todo-api/modules/activity"
	"github.com/example/todo-api/modules/api"
	"github.com/example/todo-api/modules/cache"
	"github.com/example/todo-api/modules/todo"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/middleware/accesslog"
	"github.com/go-monolith/mono/middleware/requestid"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("=== Todo API ===")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Store Backend: %s", cfg.Backend)

	level := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		level = mono.LogLevelError
	}

	// JetStream persists the kv bucket under KV_STORAGE_DIR
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(level),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.KVStorageDir),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}
	logger := app.Logger()

	// Cache plugin is always registered; without REDIS_ADDR it serves a disabled cache
	cachePlugin := cache.NewPluginModule(cfg.RedisAddr, cfg.CachePrefix, cfg.CacheTTL, logger)
	if err := app.RegisterPlugin(cachePlugin, "cache"); err != nil {
		log.Fatalf("Failed to register cache plugin: %v", err)
	}

	if cfg.Backend == todo.BackendKV {
		kvPlugin, err := kvjetstream.New(kvjetstream.Config{
			Buckets: []kvjetstream.BucketConfig{
				{
					Name:        todo.KVBucket,
					Description: "Todo documents",
					Storage:     kvjetstream.FileStorage,
				},
			},
		})
		if err != nil {
			log.Fatalf("Failed to create kv plugin: %v", err)
		}
		if err := app.RegisterPlugin(kvPlugin, "kv"); err != nil {
			log.Fatalf("Failed to register kv plugin: %v", err)
		}
	}

	// Middleware must be registered before the modules whose services it wraps
	requestIDMiddleware, err := requestid.New(requestid.WithHeaderName("X-Request-ID"))
	if err != nil {
		log.Fatalf("Failed to create requestid middleware: %v", err)
	}
	if err := app.Register(requestIDMiddleware); err != nil {
		log.Fatalf("Failed to register requestid middleware: %v", err)
	}

	if cfg.AccessLog {
		accessLogMiddleware, err := accesslog.New(
			accesslog.WithOutput(os.Stdout),
			accesslog.WithFormat(accesslog.FormatJSON),
			accesslog.WithFields([]accesslog.Field{
				accesslog.FieldTimestamp,
				accesslog.FieldRequestID,
				accesslog.FieldModule,
				accesslog.FieldService,
				accesslog.FieldDurationMS,
				accesslog.FieldStatus,
			}),
		)
		if err != nil {
			log.Fatalf("Failed to create accesslog middleware: %v", err)
		}
		if err := app.Register(accessLogMiddleware); err != nil {
			log.Fatalf("Failed to register accesslog middleware: %v", err)
		}
	}

	// Order: event consumers first, then the core domain, then the driving adapter
	activityModule := activity.NewModule(activity.DefaultCapacity, logger)
	todoModule := todo.NewModule(todo.Config{
		Backend:         cfg.Backend,
		DBPath:          cfg.DBPath,
		DBDebug:         cfg.DBDebug,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
	}, logger)
	apiModule := api.NewModule(api.Config{
		Addr:           cfg.Addr(),
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      cfg.AccessLog,
	}, logger)

	apiModule.SetActivity(activityModule)
	apiModule.AddHealthCheck("todo", todoModule)
	apiModule.AddHealthCheck("cache", cachePlugin)

	for _, module := range []mono.Module{activityModule, todoModule, apiModule} {
		if err := app.Register(module); err != nil {
			log.Fatalf("Failed to register module %s: %v", module.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Server) {
	cacheState := "disabled"
	if cfg.CacheEnabled() {
		cacheState = cfg.RedisAddr + " (ttl " + cfg.CacheTTL.String() + ")"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber")
	log.Printf("  - Storage Backend: %s", cfg.Backend)
	log.Printf("  - Cache: %s", cacheState)
	log.Println("")
	log.Println("Event-Driven Activity Log:")
	log.Println("  - TodoCreated / TodoUpdated / TodoDeleted events -> activity module")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.HTTPPort)
	log.Println("  GET    /api/v1/todos          - List todos")
	log.Println("  POST   /api/v1/todos          - Create a todo")
	log.Println("  GET    /api/v1/todos/:id      - Get a todo")
	log.Println("  PUT    /api/v1/todos/:id      - Update a todo")
	log.Println("  DELETE /api/v1/todos/:id      - Delete a todo")
	log.Println("  GET    /api/v1/activity       - Recent activity")
	log.Println("  GET    /health                - Health check")
	log.Println("  GET    /metrics               - Prometheus metrics")
	log.Println("")
	log.Printf("Shutdown timeout: %s", cfg.ShutdownTimeout.Round(time.Second))
	log.Println("Press Ctrl+C to shutdown gracefully")
}
