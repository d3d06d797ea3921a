package main

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rentroll/models"
	"rentroll/pkg/queue"
)

const maxUploadBytes = 25 * 1024 * 1024

func setupRoutes(r *gin.Engine) {
	r.GET("/healthz", healthHandler)
	r.POST("/jobs", createJobHandler)
	r.GET("/jobs", listJobsHandler)
	r.GET("/jobs/:id", getJobHandler)
	r.GET("/jobs/:id/results", jobResultsHandler)
	r.GET("/jobs/:id/events", jobEventsHandler)
	r.DELETE("/jobs/:id", cancelJobHandler)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createJobHandler accepts a PDF upload plus optional scoping and
// enqueues a processing job. Processing happens asynchronously; the
// response is 202 with the new job id.
func createJobHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 25MB)"})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only pdf files are supported"})
		return
	}

	var assetID *uint
	if v := c.PostForm("asset_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset_id"})
			return
		}
		av := uint(parsed)
		assetID = &av
	}
	crossRef := c.PostForm("cross_reference") == "true" || c.PostForm("cross_reference") == "1"

	// store under a fresh name so identical uploads never collide
	dst := filepath.Join(cfg.UploadDir, uuid.New().String()+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	job, err := store.Enqueue(c.Request.Context(), queue.EnqueueParams{
		FileName:       file.Filename,
		FilePath:       dst,
		FileSizeBytes:  file.Size,
		AssetID:        assetID,
		CrossReference: crossRef,
		MaxRetries:     cfg.MaxRetries,
	})
	if err != nil {
		if queue.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func getJobHandler(c *gin.Context) {
	job, ok := jobFromParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, jobView(job))
}

// jobResultsHandler returns the full report for a completed job.
func jobResultsHandler(c *gin.Context) {
	job, ok := jobFromParam(c)
	if !ok {
		return
	}
	if job.Status != models.JobStatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job is not completed", "status": job.Status})
		return
	}
	c.JSON(http.StatusOK, job.Result)
}

// cancelJobHandler deletes a job unless a worker currently holds it.
func cancelJobHandler(c *gin.Context) {
	id, ok := idFromParam(c)
	if !ok {
		return
	}
	if err := store.Cancel(c.Request.Context(), id); err != nil {
		switch {
		case err == queue.ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case queue.IsConflict(err):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func listJobsHandler(c *gin.Context) {
	f := queue.ListFilter{}
	if v := c.Query("status"); v != "" {
		f.Status = models.JobStatus(v)
	}
	if v := c.Query("asset_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset_id"})
			return
		}
		av := uint(parsed)
		f.AssetID = &av
	}
	if v := c.Query("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	jobs, err := store.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	views := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		views = append(views, jobView(&jobs[i]))
	}
	c.JSON(http.StatusOK, views)
}

func idFromParam(c *gin.Context) (uint, bool) {
	parsed, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return uint(parsed), true
}

func jobFromParam(c *gin.Context) (*models.Job, bool) {
	id, ok := idFromParam(c)
	if !ok {
		return nil, false
	}
	job, err := store.Get(c.Request.Context(), id)
	if err != nil {
		if err == queue.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return nil, false
	}
	return job, true
}

func jobView(job *models.Job) gin.H {
	view := gin.H{
		"job_id":         job.ID,
		"file_name":      job.FileName,
		"status":         job.Status,
		"progress":       job.Progress,
		"status_message": job.StatusMessage,
		"error_message":  job.ErrorMessage,
		"retry_count":    job.RetryCount,
		"max_retries":    job.MaxRetries,
		"created_at":     job.CreatedAt,
		"started_at":     job.StartedAt,
		"completed_at":   job.CompletedAt,
	}
	if job.AssetID != nil {
		view["asset_id"] = *job.AssetID
	}
	if job.Result != nil {
		view["stats"] = job.Result.Stats
	}
	return view
}
