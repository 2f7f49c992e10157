/**
 * Accounts Extraction Worker - Main Entry Point
 *
 * Extracts balance-sheet line items from scanned company accounts.
 *
 * Architecture:
 * - Asynq (or plain Redis list) consumer for the extraction job queue
 * - Word ingestion from Tesseract TSV tables, PDF text layers or OCR
 * - Layout pipeline: lines, page classification, bands, value grammar
 * - Unit and year voting over the whole document
 * - PostgreSQL persistence for jobs and line items
 * - Gin HTTP API for synchronous extraction and job submission
 */

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ONSBigData/parsing-company-accounts/internal/api"
	"github.com/ONSBigData/parsing-company-accounts/internal/config"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
	"github.com/ONSBigData/parsing-company-accounts/internal/queue"
	"github.com/ONSBigData/parsing-company-accounts/internal/storage"
)

// consumer is implemented by both queue backends.
type consumer interface {
	Start() error
	Stop() error
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid worker configuration: %v", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Printf("Accounts extraction worker starting...")
	log.Printf("Configuration loaded: Queue=%s (%s), Workers=%d, PageConcurrency=%d",
		cfg.QueueName, cfg.QueueBackend, cfg.WorkerConcurrency, cfg.PageConcurrency)

	// Initialize storage manager
	log.Printf("Connecting to PostgreSQL...")
	storeCtx, cancelStore := context.WithTimeout(context.Background(), 30*time.Second)
	storageManager, err := storage.NewStorageManager(storeCtx, cfg.DatabaseURL)
	cancelStore()
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized")

	// Statistics catalogue
	var catalogue *config.Catalogue
	if cfg.StatisticsFile != "" {
		catalogue, err = config.LoadCatalogue(cfg.StatisticsFile)
		if err != nil {
			log.Fatalf("Failed to load statistics catalogue: %v", err)
		}
		log.Printf("Loaded %d statistics from %s", len(catalogue.Statistics), cfg.StatisticsFile)
	}

	// Initialize document processor
	pipelineCfg, err := processor.PipelineConfigFrom(cfg)
	if err != nil {
		log.Fatalf("Invalid pipeline configuration: %v", err)
	}
	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		TempDir:     cfg.TempDir,
		MaxFileSize: cfg.MaxFileSize,
		Pipeline:    pipelineCfg,
		Catalogue:   catalogue,
		Tesseract: ocr.TesseractConfig{
			TessdataPrefix: cfg.TessdataPrefix,
			Language:       cfg.OCRLanguage,
		},
		Storage: storageManager,
	})
	if err != nil {
		log.Fatalf("Failed to initialize document processor: %v", err)
	}
	log.Printf("Document processor initialized")

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	var queueConsumer consumer
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		queueConsumer, err = queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
	default:
		queueConsumer, err = queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
	}
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	enqueuer, err := queue.NewEnqueuer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize queue producer: %v", err)
	}
	defer enqueuer.Close()

	// Start queue consumer
	if err := queueConsumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Start HTTP API
	handler := api.NewHandler(api.Config{
		Processor:         proc,
		Enqueuer:          enqueuer,
		Jobs:              storageManager,
		MaxFileSize:       cfg.MaxFileSize,
		ProcessingTimeout: time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
	})
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Printf("===========================================")
	log.Printf("Accounts extraction worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s)", cfg.QueueName, cfg.QueueBackend)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("HTTP: :%s", cfg.HTTPPort)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}

	if err := queueConsumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Shutdown complete")
}
