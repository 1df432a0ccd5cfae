package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medbillai/medbill/internal/bills"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/jobs"
	"github.com/medbillai/medbill/internal/llm"
	"github.com/medbillai/medbill/internal/ocr"
	"github.com/medbillai/medbill/internal/refdata"
	"github.com/medbillai/medbill/internal/repository"
	"github.com/medbillai/medbill/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.Database.DSN, repository.Options{
		MaxConns:        int(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("close db", "error", cerr)
		}
	}()

	refIndex, err := refdata.Open(cfg.RefData.Path, cfg.RefData.CacheTTL, logger)
	if err != nil {
		logger.Error("open reference data", "error", err)
		os.Exit(1)
	}

	billRepo := repository.NewBillRepository(db, logger)
	billSvc := bills.NewService(billRepo, logger)

	repairer := ocr.NewRepairer(cfg.OCR.Ghostscript, logger)
	textExtractor := ocr.NewExtractor(ocr.Config{
		Pdftotext: cfg.OCR.Pdftotext,
		Pdftoppm:  cfg.OCR.Pdftoppm,
		Tesseract: cfg.OCR.Tesseract,
		Language:  cfg.OCR.Language,
		DPI:       cfg.OCR.DPI,
		MaxPages:  cfg.OCR.MaxPages,
	}, logger)
	fieldExtractor := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	store := jobs.NewStore()
	pipeline := jobs.NewPipeline(jobs.PipelineDeps{
		Store:        store,
		Repairer:     repairer,
		Text:         textExtractor,
		Fields:       fieldExtractor,
		RefIndex:     refIndex,
		BillRepo:     billRepo,
		BillService:  billSvc,
		StageTimeout: cfg.Pipeline.StageTimeout,
		Logger:       logger,
	})
	orch := jobs.NewOrchestrator(store, pipeline, logger,
		jobs.WithWorkers(cfg.Pipeline.Workers),
		jobs.WithQueueSize(cfg.Pipeline.QueueSize),
	)

	srv := server.New(orch, billSvc, refIndex, fieldExtractor, cfg.Server.UploadDir, logger)
	httpSrv := srv.HTTPServer(cfg.Server.Addr)

	go func() {
		logger.Info("http.listen", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	orch.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
