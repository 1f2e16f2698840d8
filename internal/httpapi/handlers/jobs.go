package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/readmegen/internal/common"
	"github.com/suPer8Hu/readmegen/internal/generation"
)

type generateReq struct {
	RepoURL string `json:"repo_url"`
}

func jobView(j *generation.Job) gin.H {
	return gin.H{
		"job_id":     j.ID,
		"repo_url":   j.TargetReference,
		"status":     j.Status,
		"result":     j.Result,
		"attempts":   j.Attempts,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
}

func (h *Handler) Generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	job, err := h.Jobs.Submit(c.Request.Context(), req.RepoURL)
	if err != nil {
		h.fail(c, "submit", err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get job", err)
		return
	}
	common.OK(c, gin.H{"job": jobView(job)})
}

func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.Jobs.ListJobs(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, "list jobs", err)
		return
	}
	items := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobView(&jobs[i]))
	}
	common.OK(c, gin.H{"jobs": items})
}

func (h *Handler) RetryJob(c *gin.Context) {
	job, err := h.Jobs.RetryJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "retry job", err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.Jobs.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "delete job", err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) Download(c *gin.Context) {
	text, err := h.Jobs.ResultText(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "download", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="README.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(text))
}

func (h *Handler) Preview(c *gin.Context) {
	html, err := h.Jobs.ResultHTML(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "preview", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handler) BackendHealth(c *gin.Context) {
	start := time.Now()
	if err := h.Jobs.BackendHealth(c.Request.Context()); err != nil {
		h.Log.Warnw("backend health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    50301,
			"message": "generation backend unavailable",
			"data":    gin.H{"status": "down", "error": err.Error()},
		})
		return
	}
	common.OK(c, gin.H{"status": "ok", "latency_ms": time.Since(start).Milliseconds()})
}
