package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbillai/medbill/internal/common"
)

// handleJobStream pushes job snapshots over SSE. Snapshots arrive in
// non-decreasing stage-completion order and the stream ends right after the
// terminal one, converging on the same state the poll endpoint reports.
func (s *Server) handleJobStream(c *gin.Context) {
	jobID := c.Param("id")
	ch, cancel, ok := s.orch.Subscribe(jobID)
	if !ok {
		s.writeError(c, common.ErrNotFound)
		return
	}
	defer cancel()

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		s.writeError(c, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("sse.client_gone", "job_id", jobID)
			return
		case job, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(s.jobSnapshot(ctx, job))
			if err != nil {
				s.log.Error("sse.encode_failed", "job_id", jobID, "error", err)
				return
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
