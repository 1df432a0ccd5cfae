// Command auditbill runs one bill through the full extraction and audit
// pipeline from the shell, without the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/bills"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/jobs"
	"github.com/medbillai/medbill/internal/llm"
	"github.com/medbillai/medbill/internal/ocr"
	"github.com/medbillai/medbill/internal/refdata"
	"github.com/medbillai/medbill/internal/repository"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	var (
		useLLM   = flag.Bool("llm", true, "refine extraction with the model")
		dpi      = flag.Int("dpi", 200, "rasterization DPI for scanned pages")
		maxPages = flag.Int("max-pages", 20, "page cap for OCR (0 = all)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "auditbill [flags] <bill.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	if _, err := os.Stat(path); err != nil {
		logger.Error("bill file unreadable", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := repository.Open(cfg.Database.DSN, repository.Options{
		MaxConns:        int(cfg.Database.MaxConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	refIndex, err := refdata.Open(cfg.RefData.Path, cfg.RefData.CacheTTL, logger)
	if err != nil {
		logger.Error("open reference data", "error", err)
		os.Exit(1)
	}

	billRepo := repository.NewBillRepository(db, logger)
	billSvc := bills.NewService(billRepo, logger)

	store := jobs.NewStore()
	pipeline := jobs.NewPipeline(jobs.PipelineDeps{
		Store:    store,
		Repairer: ocr.NewRepairer(cfg.OCR.Ghostscript, logger),
		Text: ocr.NewExtractor(ocr.Config{
			Pdftotext: cfg.OCR.Pdftotext,
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Tesseract: cfg.OCR.Tesseract,
			Language:  cfg.OCR.Language,
			DPI:       cfg.OCR.DPI,
			MaxPages:  cfg.OCR.MaxPages,
		}, logger),
		Fields: llm.NewClient(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger),
		RefIndex:     refIndex,
		BillRepo:     billRepo,
		BillService:  billSvc,
		StageTimeout: cfg.Pipeline.StageTimeout,
		Logger:       logger,
	})
	orch := jobs.NewOrchestrator(store, pipeline, logger, jobs.WithWorkers(1))

	opts := entity.DefaultOptions()
	opts.UseLLM = *useLLM
	opts.DPI = *dpi
	opts.MaxPages = *maxPages

	info, _ := os.Stat(path)
	jobID, err := orch.Submit(context.Background(), jobs.Submission{
		Filename:  filepath.Base(path),
		Path:      path,
		SizeBytes: info.Size(),
	}, opts)
	if err != nil {
		logger.Error("submit", "error", err)
		os.Exit(1)
	}

	ch, cancel, ok := orch.Subscribe(jobID)
	if !ok {
		logger.Error("job vanished", "job_id", jobID)
		os.Exit(1)
	}
	defer cancel()

	var last *entity.Job
	for snap := range ch {
		last = snap
	}
	if last == nil || last.Status != constants.JobStatusCompleted {
		msg := "unknown failure"
		if last != nil && last.Error != "" {
			msg = last.Error
		}
		logger.Error("audit failed", "job_id", jobID, "error", msg)
		os.Exit(1)
	}

	ctx, cancelGet := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelGet()
	bill, err := billSvc.Get(ctx, last.ResultID)
	if err != nil {
		logger.Error("load result", "bill_id", last.ResultID, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bill); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	orch.Shutdown(shutdownCtx)
}
