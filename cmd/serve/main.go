package main

import (
	"fmt"
	"os"

	"github.com/yungbote/neurodecode/internal/data/db"
	"github.com/yungbote/neurodecode/internal/data/repos/runs"
	"github.com/yungbote/neurodecode/internal/handlers"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
	"github.com/yungbote/neurodecode/internal/server"
	"github.com/yungbote/neurodecode/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Run store
	dbService, err := db.NewService(log)
	if err != nil {
		log.Fatal("DB init failed", "error", err)
	}
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		log.Fatal("Migration failed", "error", err)
	}
	runRepo := runs.NewDecodingRunRepo(dbService.DB(), log)

	// Router
	router := server.NewRouter(server.RouterConfig{
		RunsHandler: handlers.NewRunsHandler(runRepo),
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Results API listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server stopped", "error", err)
	}
}
