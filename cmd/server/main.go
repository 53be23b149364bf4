// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/cache"
	"github.com/t1ww/code-battle/internal/clients"
	"github.com/t1ww/code-battle/internal/config"
	"github.com/t1ww/code-battle/internal/game"
	"github.com/t1ww/code-battle/internal/handlers"
	"github.com/t1ww/code-battle/internal/middleware"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	questions := clients.NewQuestionClient(cfg.QuestionServiceURL, logger)
	runner := clients.NewRunnerClient(cfg.RunnerServiceURL, logger)

	var publisher game.ResultPublisher
	if pub, err := cache.ConnectPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.ResultQueue); err != nil {
		logger.Warnf("redis unavailable, match results will not be published: %v", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	srv := handlers.NewServer(logger, questions, publisher, runner)
	srv.Queues.SetInterval(cfg.MatchInterval)
	srv.Rooms.SetSwapTimeout(cfg.SwapTimeout)
	srv.Rooms.SetStartDelay(cfg.StartCountdown)
	srv.Games.SetDrawTimeout(cfg.DrawTimeout)
	srv.Games.SetQuestionsPerMatch(cfg.QuestionsPerMatch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.Queues.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(logger))
	r.Get("/healthz", srv.HealthzHandler)
	r.Get("/debug/rooms", srv.ListRoomsHandler)
	r.Get("/ws", srv.WSHandler())

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutCtx)
	}()

	logger.Infof("code battle coordinator running on :%s", cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
