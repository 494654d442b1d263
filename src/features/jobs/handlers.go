package jobs

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

// JobResponse is the API view of a Job, with links to its sub-resources.
type JobResponse struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Status    JobStatus         `json:"status"`
	Progress  int               `json:"progress"`
	Message   string            `json:"message"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Links     map[string]string `json:"_links"`
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) toResponse(c *fiber.Ctx, job *Job) *JobResponse {
	h.service.mu.RLock()
	defer h.service.mu.RUnlock()
	baseURL := c.BaseURL()
	return &JobResponse{
		ID:        job.ID,
		Type:      job.Type,
		Name:      job.Name,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		Links: map[string]string{
			"self":   fmt.Sprintf("%s/jobs/%s", baseURL, job.ID),
			"logs":   fmt.Sprintf("%s/jobs/%s/logs", baseURL, job.ID),
			"cancel": fmt.Sprintf("%s/jobs/%s/cancel", baseURL, job.ID),
		},
	}
}

func (h *Handler) HandleJobStatus(c *fiber.Ctx) error {
	job, exists := h.service.GetJob(c.Params("id"))
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	return c.JSON(h.toResponse(c, job))
}

func (h *Handler) HandleJobLogs(c *fiber.Ctx) error {
	job, exists := h.service.GetJob(c.Params("id"))
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	if job.LogPath == "" {
		return c.SendString("No logs for this job.")
	}
	logContent, err := os.ReadFile(job.LogPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to read log file.")
	}
	c.Set("Content-Type", "text/plain")
	return c.SendString(string(logContent))
}

// HandleJobList lists jobs newest first. ?status= filters by status.
func (h *Handler) HandleJobList(c *fiber.Ctx) error {
	status := JobStatus(c.Query("status"))
	jobs := h.service.GetJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	responses := make([]*JobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp := h.toResponse(c, job)
		if status != "" && resp.Status != status {
			continue
		}
		responses = append(responses, resp)
	}
	return c.JSON(responses)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if err := h.service.CancelJob(jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	job, _ := h.service.GetJob(jobID)
	return c.JSON(h.toResponse(c, job))
}

func (h *Handler) HandleCleanupJobs(c *fiber.Ctx) error {
	maxAge := 24 * time.Hour
	if raw := c.Query("max_age"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid max_age"})
		}
		maxAge = parsed
	}
	h.service.CleanupOldJobs(maxAge)
	return c.JSON(fiber.Map{"status": "cleanup completed"})
}
