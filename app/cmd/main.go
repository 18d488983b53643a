package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsrag/app/server"
	"newsrag/logger"
	"newsrag/types"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func init() {
	loadEnvVariables()
}

func main() {
	cfg, err := types.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger.Init(cfg.LogLevel)
	log := logger.New("newsrag-api")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	s, err := server.NewServer(ctx, cfg, log)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to start server")
	}

	go func() {
		if err := s.Run(); err != nil {
			log.WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Info("received shutdown signal, shutting down server")
	s.Stop()
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("error loading .env file")
	}
}
