package main

import (
	"context"
	"fmt"
	"log"
	"os"

	echoapi "github.com/trezcool/kazi/apps/api/echo"
	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/classtoken"
	"github.com/trezcool/kazi/core/task"
	logsvc "github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage/database"
	sqlxrepos "github.com/trezcool/kazi/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, conf.AppName+" - API : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Set up DB

	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	sqlDB, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	if err = database.Migrate(sqlDB); err != nil {
		logger.Fatal("migrating database", err)
	}
	db := database.Wrap(sqlDB)

	// =========================================================================
	// Set up services

	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	tokenSvc := classtoken.NewService(db, sqlxrepos.NewClassTokenRepository(db), schoolRepo, logger)
	taskSvc := task.NewService(db, sqlxrepos.NewTaskRepository(db), schoolRepo, logger)

	// =========================================================================
	// Start API service

	server := echoapi.NewServer(&echoapi.Options{
		Addr:     conf.Server.Address(),
		Conf:     conf,
		Logger:   logger,
		TokenSvc: tokenSvc,
		TaskSvc:  taskSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
