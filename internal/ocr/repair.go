package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Repairer rewrites a PDF through ghostscript before extraction. Scanned
// bills frequently arrive with broken xref tables or truncated streams that
// poppler chokes on; a pdfwrite round trip fixes most of them.
type Repairer struct {
	gs     string
	runner Runner
	logger *slog.Logger
}

func NewRepairer(ghostscript string, logger *slog.Logger) *Repairer {
	if ghostscript == "" {
		ghostscript = "gs"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{gs: ghostscript, runner: execRunner{}, logger: logger}
}

// Repair returns the path to a rewritten copy of the PDF. When ghostscript
// is missing or fails, the original path is returned with a warning and the
// pipeline proceeds on the unrepaired file.
func (r *Repairer) Repair(ctx context.Context, path string) (repaired string, warnings []string, err error) {
	out := repairedPath(path)

	_, errb, runErr := r.runner.Run(ctx, r.gs,
		"-o", out,
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=/prepress",
		"-dQUIET",
		path,
	)
	if runErr != nil {
		r.logger.Warn("repair.ghostscript_failed", "path", path, "error", runErr)
		_ = os.Remove(out)
		return path, []string{fmt.Sprintf("ghostscript repair failed, using original: %v", runErr), string(errb)}, nil
	}

	info, statErr := os.Stat(out)
	if statErr != nil || info.Size() == 0 {
		r.logger.Warn("repair.empty_output", "path", path)
		_ = os.Remove(out)
		return path, []string{"ghostscript produced no output, using original"}, nil
	}

	r.logger.Debug("repair.done", "path", path, "repaired", out, "bytes", info.Size())
	return out, nil, nil
}

func repairedPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, base[:len(base)-len(ext)]+".repaired"+ext)
}
