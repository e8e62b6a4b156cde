package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/dmarcwatch/reportstack/config"
	"github.com/dmarcwatch/reportstack/internal/database"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/server"
	"github.com/dmarcwatch/reportstack/services"
)

func main() {
	app := &cli.App{
		Name:  "reportstack",
		Usage: "DMARC aggregate report ingestion and processing pipeline",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					_, db := mustInit()
					if err := repository.MigrateDB(db); err != nil {
						return err
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the API server and cron scheduler",
				Action: func(c *cli.Context) error {
					cfg, db := mustInit()

					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("Reportstack starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return err
					}
					return srv.Run()
				},
			},
			{
				Name:  "ingest",
				Usage: "Run a single mail ingestion pass and exit",
				Action: func(c *cli.Context) error {
					cfg, db := mustInit()
					svcs := mustInitServices(cfg, db)

					summary, err := svcs.IngestionService.IngestFromInbox(context.Background(), cfg.PipelineConfig.IngestBatchLimit)
					if err != nil {
						return err
					}
					log.Printf("Ingest done: %d emails checked, %d attachments ingested, %d duplicates skipped, %d errors",
						summary.EmailsChecked, summary.AttachmentsIngested, summary.DuplicatesSkipped, summary.Errors)
					return nil
				},
			},
			{
				Name:  "process",
				Usage: "Drain pending ingested reports and exit",
				Action: func(c *cli.Context) error {
					cfg, db := mustInit()
					svcs := mustInitServices(cfg, db)

					summary, err := svcs.ProcessingService.ProcessPendingReports(context.Background(), cfg.PipelineConfig.ProcessBatchLimit)
					if err != nil {
						return err
					}
					log.Printf("Processing done: %d completed, %d failed", summary.Processed, summary.Failed)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mustInit() (*config.Config, *gorm.DB) {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}

	db, err := database.InitReportstackDatabase(&database.DatabaseConfig{
		DBName:          cfg.DatabaseConfig.DBName,
		Host:            cfg.DatabaseConfig.Host,
		Port:            cfg.DatabaseConfig.Port,
		User:            cfg.DatabaseConfig.User,
		Password:        cfg.DatabaseConfig.Password,
		MaxConn:         cfg.DatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.DatabaseConfig.LogLevel,
		SSLMode:         cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	return cfg, db
}

func mustInitServices(cfg *config.Config, db *gorm.DB) *services.Services {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	repos := repository.InitRepositories(db)
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		log.Fatalf("Service initialization failed: %v", err)
	}
	return svcs
}
