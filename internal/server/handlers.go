package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
	"github.com/medbillai/medbill/internal/jobs"
)

func (s *Server) handleStatus(c *gin.Context) {
	rates, hospitals, stats := s.ref.Counts()
	llmUp := false
	if s.fields != nil {
		llmUp = s.fields.Available(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"reference": gin.H{
			"rates":           rates,
			"hospitals":       hospitals,
			"procedure_stats": stats,
		},
		"llm_available": llmUp,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, common.NewAppError("UPLOAD", "missing multipart file field", common.ErrInvalidInput))
		return
	}

	ext := constants.NormalizeExt(filepath.Ext(file.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		s.writeError(c, common.NewAppError("UPLOAD",
			fmt.Sprintf("unsupported file type %q: only PDF bills are accepted", ext), common.ErrInvalidInput))
		return
	}

	opts := entity.DefaultOptions()
	if v := c.Query("use_llm"); v != "" {
		opts.UseLLM = v == "true" || v == "1"
	}
	if v := c.Query("dpi"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.DPI = n
		}
	}
	if v := c.Query("max_pages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.MaxPages = n
		}
	}
	if v := c.Query("scheme"); v != "" {
		scheme, ok := constants.ParseScheme(v)
		if !ok {
			s.writeError(c, common.NewAppError("UPLOAD",
				fmt.Sprintf("unknown scheme %q", v), common.ErrInvalidInput))
			return
		}
		opts.Claim.Scheme = scheme
	}
	if v := c.Query("grade"); v != "" {
		opts.Claim.Grade = v
	}
	if v := c.Query("prior_opd_claims"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			opts.Claim.PriorOPDClaims = n
		}
	}
	if v := c.Query("discharge_summary"); v != "" {
		opts.Claim.DischargeSummary = v == "true" || v == "1"
	}
	if v := c.Query("transfusion_evidence"); v != "" {
		opts.Claim.TransfusionEvidence = v == "true" || v == "1"
	}
	if v := c.Query("extended_stay_approval"); v != "" {
		opts.Claim.ExtendedStayApproval = v == "true" || v == "1"
	}

	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		s.writeError(c, fmt.Errorf("prepare upload directory: %w", err))
		return
	}
	dst := filepath.Join(s.uploadDir, uuid.New().String()+".pdf")
	if err := c.SaveUploadedFile(file, dst); err != nil {
		s.writeError(c, fmt.Errorf("store upload: %w", err))
		return
	}

	jobID, err := s.orch.Submit(c.Request.Context(), jobs.Submission{
		Filename:  file.Filename,
		Path:      dst,
		SizeBytes: file.Size,
	}, opts)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":       jobID,
		"filename":     file.Filename,
		"file_size_mb": float64(file.Size) / (1024 * 1024),
		"message":      "queued for processing",
	})
}

// jobResponse is the poll/stream shape. The stored audit result rides along
// once the job has one.
type jobResponse struct {
	*entity.Job
	Result *entity.Bill `json:"result,omitempty"`
}

func (s *Server) jobSnapshot(ctx context.Context, job *entity.Job) jobResponse {
	resp := jobResponse{Job: job}
	if job.ResultID != "" {
		if bill, err := s.bills.Get(ctx, job.ResultID); err == nil {
			resp.Result = bill
		}
	}
	return resp
}

func (s *Server) handleJob(c *gin.Context) {
	job, ok := s.orch.Get(c.Param("id"))
	if !ok {
		s.writeError(c, common.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, s.jobSnapshot(c.Request.Context(), job))
}

func (s *Server) handleBillList(c *gin.Context) {
	list, err := s.bills.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if list == nil {
		list = []entity.BillSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"bills": list, "count": len(list)})
}

func (s *Server) handleBillDetail(c *gin.Context) {
	bill, err := s.bills.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

type saveRequest struct {
	Edits         map[string]string `json:"edits"`
	EditedByUser  bool              `json:"edited_by_user"`
	EditTimestamp string            `json:"edit_timestamp"`
}

func (s *Server) handleBillSave(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, common.NewAppError("BILL_SAVE", "malformed save request", common.ErrInvalidInput))
		return
	}

	editedAt := time.Now().UTC()
	if req.EditTimestamp != "" {
		if t, err := time.Parse(time.RFC3339, req.EditTimestamp); err == nil {
			editedAt = t
		}
	}

	if err := s.bills.Save(c.Request.Context(), c.Param("id"), req.Edits, req.EditedByUser, editedAt); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (s *Server) handleRateSearch(c *gin.Context) {
	out, err := s.ref.SearchRates(c.Query("q"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}

func (s *Server) handleHospitalSearch(c *gin.Context) {
	out, err := s.ref.SearchHospitals(c.Query("q"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}
