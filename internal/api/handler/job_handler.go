package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/quantum-imaging/internal/api/dto"
	"github.com/cuongbtq/quantum-imaging/internal/domain"
	"github.com/cuongbtq/quantum-imaging/internal/imaging"
	"github.com/cuongbtq/quantum-imaging/internal/worker/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// retryAfterSeconds is sent with 503 responses
const retryAfterSeconds = "1"

// CreateJob handles POST /api/v1/jobs
// Decodes the uploaded image and submits it to the worker pool
func (h *JobHandler) CreateJob(c *gin.Context) {
	h.logger.Info("CreateJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	// 1. Validate form fields
	var req dto.CreateJobRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		h.logger.Error("Invalid operation", slog.String("operation", req.Operation))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"kind":  domain.KindInvalidParameter,
		})
		return
	}

	// 2. Read and decode the image
	data, err := h.readImage(c)
	if err != nil {
		h.logger.Error("Failed to read image", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "image file is required",
		})
		return
	}

	img, err := imaging.Decode(data, h.decode)
	if err != nil {
		h.logger.Warn("Failed to decode image",
			slog.String("error", err.Error()),
			slog.Int("size", len(data)),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"kind":  domain.KindUnsupportedInput,
		})
		return
	}

	// 3. Submit to the worker pool
	job, err := h.scheduler.Submit(op, img, domain.Options{
		TargetRatio:  req.TargetRatio,
		FeatureCount: req.FeatureCount,
		Seed:         req.Seed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) || errors.Is(err, domain.ErrShuttingDown) {
			h.logger.Warn("Job submission rejected", slog.String("error", err.Error()))
			c.Header("Retry-After", retryAfterSeconds)
			body := gin.H{"error": err.Error()}
			if errors.Is(err, domain.ErrQueueFull) {
				body["kind"] = domain.KindQueueFull
			}
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	// 4. Jobs failed at submission are reported to the caller straight away
	resp := dto.CreateJobResponse{
		JobID:  job.ID,
		Status: string(job.Status),
		Error:  job.Error,
	}
	if job.Status == domain.JobStatusFailed {
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *JobHandler) readImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves the status and, once finished, the result or error of a job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	h.logger.Debug("GetJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	// 1. Validate job_id format (UUID)
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	// 2. Read the job snapshot
	job, err := h.scheduler.Get(jobID)
	if err != nil {
		h.respondLookupError(c, jobID, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job, true))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	h.logger.Debug("ListJobs called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	// 1. Parse query parameters
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	// 2. Validate parameters
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	filter := storage.JobFilter{PageSize: req.PageSize}

	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		filter.Status = status
	}

	if req.Operation != "" {
		op, err := domain.ParseOperation(req.Operation)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		filter.Operation = op
	}

	// 3. Decode cursor for pagination
	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}
	filter.Cursor = cursor

	// 4. Query the job store
	jobs := h.scheduler.List(filter)

	// 5. Prepare response with next cursor if more results exist
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = dto.NewJobDTO(job, false)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			Seq:   lastJob.Seq,
			JobID: lastJob.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Removes a finished job from the store
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	h.logger.Info("DeleteJob called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("job_id", jobID),
	)

	// 1. Validate job_id format (UUID)
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	// 2. Only terminal jobs can be deleted
	if err := h.scheduler.Delete(jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotTerminal) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "job is still queued or processing",
			})
			return
		}
		h.respondLookupError(c, jobID, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) respondLookupError(c *gin.Context, jobID string, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
			"kind":  domain.KindNotFound,
		})
		return
	}

	h.logger.Error("Failed to get job",
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to get job",
	})
}
