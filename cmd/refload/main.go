// Command refload builds the reference SQLite database consumed by the
// audit daemon: CGHS and AIIMS rate cards, the empanelled hospital registry
// and historical claim statistics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/refdata"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		dbPath        = flag.String("db", "./data/processed/reference.db", "output reference database")
		cghsPath      = flag.String("cghs", "", "CGHS rate card (.xlsx or .csv)")
		aiimsPath     = flag.String("aiims", "", "AIIMS rate card (.xlsx or .csv)")
		hospitalsPath = flag.String("hospitals", "", "empanelled hospital registry (.xlsx or .csv)")
		claimsPath    = flag.String("claims", "", "historical claims for outlier stats (.csv)")
	)
	flag.Parse()

	if *cghsPath == "" && *aiimsPath == "" && *hospitalsPath == "" && *claimsPath == "" {
		logger.Error("nothing to load: pass at least one of -cghs, -aiims, -hospitals, -claims")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := refdata.OpenDB(*dbPath)
	if err != nil {
		logger.Error("open reference db", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("close reference db", "error", cerr)
		}
	}()

	var rates []refdata.Rate
	if *cghsPath != "" {
		loaded, err := refdata.LoadRates(*cghsPath, constants.RateCGHS)
		if err != nil {
			logger.Error("load cghs rates", "path", *cghsPath, "error", err)
			os.Exit(1)
		}
		logger.Info("refload.rates", "tag", "CGHS", "count", len(loaded))
		rates = append(rates, loaded...)
	}
	if *aiimsPath != "" {
		loaded, err := refdata.LoadRates(*aiimsPath, constants.RateAIIMS)
		if err != nil {
			logger.Error("load aiims rates", "path", *aiimsPath, "error", err)
			os.Exit(1)
		}
		logger.Info("refload.rates", "tag", "AIIMS", "count", len(loaded))
		rates = append(rates, loaded...)
	}
	if len(rates) > 0 {
		if err := refdata.ReplaceRates(ctx, db, rates); err != nil {
			logger.Error("write rates", "error", err)
			os.Exit(1)
		}
	}

	if *hospitalsPath != "" {
		hospitals, err := refdata.LoadHospitals(*hospitalsPath)
		if err != nil {
			logger.Error("load hospitals", "path", *hospitalsPath, "error", err)
			os.Exit(1)
		}
		if err := refdata.ReplaceHospitals(ctx, db, hospitals); err != nil {
			logger.Error("write hospitals", "error", err)
			os.Exit(1)
		}
		logger.Info("refload.hospitals", "count", len(hospitals))
	}

	if *claimsPath != "" {
		stats, err := refdata.LoadStatsFromClaims(*claimsPath)
		if err != nil {
			logger.Error("load claim stats", "path", *claimsPath, "error", err)
			os.Exit(1)
		}
		if err := refdata.ReplaceStats(ctx, db, stats); err != nil {
			logger.Error("write claim stats", "error", err)
			os.Exit(1)
		}
		logger.Info("refload.stats", "procedures", len(stats))
	}

	logger.Info("refload.done", "db", *dbPath)
}
