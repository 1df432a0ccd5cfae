package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/medbillai/medbill/internal/extract"
)

// minTextChars is the threshold below which an embedded text layer is
// considered empty and the page gets rasterized for OCR instead. Scanned
// bills often carry a junk layer of a few dozen characters.
const minTextChars = 100

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language string // default "eng"
	DPI      int    // rasterization DPI for scanned PDFs, default 200
	MaxPages int    // 0 = no limit

	EnableTSVConfidence bool
}

// Extractor pulls text out of bill PDFs. It tries the embedded text layer
// first and falls back to rasterize-then-tesseract for scanned documents.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

var _ extract.TextExtractor = (*Extractor)(nil)

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract runs the text-layer strategy first, then OCR when the layer is
// missing or too thin to be a real document.
func (e *Extractor) Extract(ctx context.Context, path string, opts extract.TextOptions) (extract.TextResult, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", path, "dpi", e.dpi(opts), "max_pages", e.maxPages(opts))

	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil && len(strings.TrimSpace(text)) >= minTextChars {
		res := extract.TextResult{
			Text:           text,
			Pages:          pages,
			PagesProcessed: pages,
			Method:         "pdf-text",
			Confidence:     textLayerConfidence(text),
			Duration:       time.Since(start),
			Warnings:       warns,
		}
		e.logger.Info("ocr.extract.done", "method", res.Method, "pages", res.Pages, "chars", len(res.Text))
		return res, nil
	}
	if err != nil {
		warns = append(warns, fmt.Sprintf("pdftotext: %v", err))
	} else {
		warns = append(warns, "embedded text layer too sparse, falling back to OCR")
	}

	res, err := e.pdfToOCR(ctx, path, opts)
	res.Duration = time.Since(start)
	res.Warnings = append(warns, res.Warnings...)
	if err != nil {
		e.logger.Error("ocr.extract.failed", "path", path, "error", err)
		return res, err
	}
	e.logger.Info("ocr.extract.done", "method", res.Method, "pages", res.Pages,
		"pages_processed", res.PagesProcessed, "confidence", res.Confidence)
	return res, nil
}

func (e *Extractor) dpi(opts extract.TextOptions) int {
	if opts.DPI > 0 {
		return opts.DPI
	}
	return e.cfg.DPI
}

func (e *Extractor) maxPages(opts extract.TextOptions) int {
	if opts.MaxPages > 0 {
		return opts.MaxPages
	}
	return e.cfg.MaxPages
}

func (e *Extractor) language(opts extract.TextOptions) string {
	if opts.Language != "" {
		return opts.Language
	}
	return e.cfg.Language
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string, opts extract.TextOptions) (extract.TextResult, error) {
	tmpDir, err := os.MkdirTemp("", "mb-pp-*")
	if err != nil {
		return extract.TextResult{}, err
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tmpdir.remove_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.dpi(opts)), "-png", path, prefix)
	if err != nil {
		return extract.TextResult{Warnings: []string{string(errb)}}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	total := len(matches)
	if max := e.maxPages(opts); max > 0 && total > max {
		matches = matches[:max]
	}
	if total == 0 {
		return extract.TextResult{Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	var confSum float64
	var confN int
	for i, img := range matches {
		txt, conf, w, err := e.tesseractPage(ctx, img, opts)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(fmt.Sprintf("--- PAGE %d ---\n", i+1))
		b.WriteString(txt)
		if conf > 0 {
			confSum += conf
			confN++
		}
	}

	text := b.String()
	conf := heuristicConfidence(text)
	if confN > 0 {
		// blend: weight the tesseract word confidence higher
		conf = 0.7*(confSum/float64(confN)) + 0.3*conf
	}
	if conf > 1.0 {
		conf = 1.0
	}

	return extract.TextResult{
		Text:           text,
		Pages:          total,
		PagesProcessed: len(matches),
		Method:         "pdf-ocr",
		Confidence:     conf,
		Warnings:       warns,
	}, nil
}

func (e *Extractor) tesseractPage(ctx context.Context, img string, opts extract.TextOptions) (string, float64, []string, error) {
	lang := e.language(opts)
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", lang, "--psm", "6")
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	var conf float64
	var warns []string
	if e.cfg.EnableTSVConfidence {
		c, w, tsvErr := e.tesseractTSVConfidence(ctx, img, lang)
		warns = append(warns, w...)
		if tsvErr != nil {
			warns = append(warns, tsvErr.Error())
		} else {
			conf = c
		}
	}
	return string(out), conf, warns, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, img, lang string) (float64, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", lang, "--psm", "6", "tsv")
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	// conf column is the last; header line includes "conf"
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-1]
		if confStr == "" || confStr == "-1" {
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(confStr, "%f", &v); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	return (sum / n) / 100.0, nil, nil
}
