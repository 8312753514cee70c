package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gradebook-server-go/config"
	"gradebook-server-go/db"
	"gradebook-server-go/gradebook"
	"gradebook-server-go/handlers"
	"gradebook-server-go/logging"
)

// Each shutdown step gets its own deadline
var (
	shutdownTimeout      = 5 * time.Second
	sessionDeleteTimeout = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		gokitlog.NewLogfmtLogger(os.Stderr).Log("level", "error", "msg", "server exited", "err", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until it has shut down. Deferred cleanup
// runs on every return path.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(os.Stdout, cfg.Debug)
	level.Info(logger).Log("msg", "session started", "session", cfg.SessionID)

	book := gradebook.New()

	// Mirror the session into Redis when configured
	var redisService *db.RedisService
	if cfg.RedisAddr != "" {
		redisClient, err := db.InitializeRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		level.Info(logger).Log("msg", "connected to Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)

		redisService = db.NewRedisService(redisClient, cfg.SessionID, cfg.SessionTTL, logging.Component(logger, "redis"))
		if _, err := redisService.Resume(context.Background(), book); err != nil {
			level.Warn(logger).Log("msg", "could not resume session, starting empty", "err", err)
		}
		redisService.Attach(book)
	}

	checkAndSeedData(cfg, book, logging.Component(logger, "seed"))

	apiHandler := handlers.NewAPIHandler(book, cfg.ExportCacheTTL, logging.Component(logger, "api"))

	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	handlers.RegisterRoutes(router, apiHandler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go gracefulShutdown(sigCtx, server, redisService, logger, done)

	level.Info(logger).Log("msg", "starting server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}

	<-done
	level.Info(logger).Log("msg", "graceful shutdown complete")
	return nil
}

// gracefulShutdown waits for ctx to end, stops the server and ends the session
func gracefulShutdown(ctx context.Context, server *http.Server, redisService *db.RedisService, logger gokitlog.Logger, done chan<- struct{}) {
	defer close(done)

	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		level.Error(logger).Log("msg", "server forced to shutdown", "err", err)
	}

	// The session ends with the process; nothing is kept for the next one.
	if redisService != nil {
		deleteCtx, cancelDelete := context.WithTimeout(context.Background(), sessionDeleteTimeout)
		defer cancelDelete()
		if err := redisService.DeleteSession(deleteCtx); err != nil {
			level.Warn(logger).Log("msg", "failed to delete session", "err", err)
		}
	}
}

// checkAndSeedData adds sample records when the book starts empty
func checkAndSeedData(cfg config.Config, book *gradebook.Book, logger gokitlog.Logger) {
	if !cfg.SeedData {
		return
	}
	if len(book.Students()) > 0 || len(book.Courses()) > 0 {
		level.Info(logger).Log("msg", "existing session data found, skipping seed data",
			"students", len(book.Students()), "courses", len(book.Courses()))
		return
	}
	level.Info(logger).Log("msg", "no existing data, adding seed data")
	seedInitialData(book, logger)
}

// seedInitialData adds the sample courses, students and enrollments
func seedInitialData(book *gradebook.Book, logger gokitlog.Logger) {
	courses := []struct {
		name    string
		code    string
		credits int
	}{
		{"Introduction to Computer Science", "CS1", 3},
		{"Calculus I", "MA1", 4},
		{"Academic Writing", "EN1", 2},
	}
	for _, c := range courses {
		if _, err := book.AddCourse(c.name, c.code, c.credits); err != nil {
			level.Warn(logger).Log("msg", "failed to add seed course", "code", c.code, "err", err)
		}
	}

	ana, err := book.AddStudent("Ana")
	if err != nil {
		level.Warn(logger).Log("msg", "failed to add seed student", "err", err)
		return
	}
	if _, err := book.AddStudent("Ben"); err != nil {
		level.Warn(logger).Log("msg", "failed to add seed student", "err", err)
	}

	for _, e := range [][2]string{{"CS1", "A"}, {"MA1", "B"}} {
		if _, err := book.Enroll(ana.ID, e[0], e[1]); err != nil {
			level.Warn(logger).Log("msg", "failed to add seed enrollment", "code", e[0], "err", err)
		}
	}

	level.Info(logger).Log("msg", "seed data added")
}
