package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowsmartly-studio/handlers/api/designs"
	presencehub "flowsmartly-studio/handlers/presence"
	authMiddleware "flowsmartly-studio/middleware"
	"flowsmartly-studio/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const shareTokenTTL = 7 * 24 * time.Hour

func setupRouter(opts presencehub.Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-User-Id", "X-User-Name", "X-User-Avatar", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v1/designs", func(r chi.Router) {
		r.Use(authMiddleware.RequireIdentity)
		r.Post("/", designs.HandleCreate(opts.Store))
		r.Get("/", designs.HandleList(opts.Store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", designs.HandleGet(opts.Store))
			r.Put("/", designs.HandleSave(opts.Store))
			r.Delete("/", designs.HandleDelete(opts.Store))
			r.Post("/share-token", designs.HandleShareToken(opts.Store, opts.ShareSecret, shareTokenTTL))
		})
	})

	// The presence stream authenticates itself: members via forwarded
	// identity headers, guests via a share token query parameter.
	r.Route("/designs/{id}/presence", func(r chi.Router) {
		r.Get("/", presencehub.HandleStream(opts))
		r.Post("/broadcast", presencehub.HandleBroadcast(opts))
		r.Post("/cursor", presencehub.HandleCursor(opts))
		r.Post("/selection", presencehub.HandleSelection(opts))
	})

	return r
}

func waitForShutdown(server *http.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	server.Close()
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	secret := os.Getenv("SHARE_TOKEN_SECRET")
	if secret == "" {
		logrus.Fatal("SHARE_TOKEN_SECRET environment variable must be set")
	}

	opts := presencehub.Options{
		Hub:         presencehub.NewHub(),
		Store:       stores.GetStore(),
		ShareSecret: []byte(secret),
	}
	r := setupRouter(opts)

	server := &http.Server{Addr: *listenAddress, Handler: r}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(server)
}
