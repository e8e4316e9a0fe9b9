package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"automator/internal/core/job"
	"automator/internal/platform/queue"
)

type JobHandler struct {
	jobs *job.Service
}

func NewJobHandler(jobs *job.Service) *JobHandler { return &JobHandler{jobs: jobs} }

// ErrorResponse is the structured failure shape for every operation:
// a kind the caller can branch on plus a human-readable message.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

type SubmitResponse struct {
	Success bool       `json:"success"`
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Status  job.Status `json:"status"`
}

type JobResponse struct {
	Success bool     `json:"success"`
	Job     *job.Job `json:"job"`
}

type ListResponse struct {
	Success bool       `json:"success"`
	Jobs    []*job.Job `json:"jobs"`
	Count   int        `json:"count"`
}

type QueueCountsResponse struct {
	Success bool                    `json:"success"`
	Lanes   map[string]queue.Counts `json:"lanes"`
	Total   int                     `json:"total"`
}

func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, job.ErrInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Kind: "validation", Error: err.Error()})
	case errors.Is(err, job.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Kind: "not_found", Error: "job not found"})
	case errors.Is(err, job.ErrIllegalTransition):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Kind: "illegal_transition", Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Kind: "internal", Error: "internal error"})
	}
}

func (h *JobHandler) HandleCreate(c *fiber.Ctx) error {
	var req job.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Kind: "validation", Error: "invalid body"})
	}
	j, err := h.jobs.Submit(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(SubmitResponse{Success: true, ID: j.ID, Name: j.Name, Status: j.Status})
}

func (h *JobHandler) HandleGet(c *fiber.Ctx) error {
	j, err := h.jobs.Get(c.Context(), c.Params("jobId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(JobResponse{Success: true, Job: j})
}

func (h *JobHandler) HandleList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	status := job.Status(c.Query("status"))
	jobs, err := h.jobs.List(c.Context(), limit, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ListResponse{Success: true, Jobs: jobs, Count: len(jobs)})
}

func (h *JobHandler) HandleCancel(c *fiber.Ctx) error {
	j, err := h.jobs.Cancel(c.Context(), c.Params("jobId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(JobResponse{Success: true, Job: j})
}

func (h *JobHandler) HandleRetry(c *fiber.Ctx) error {
	j, err := h.jobs.Retry(c.Context(), c.Params("jobId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(JobResponse{Success: true, Job: j})
}

func (h *JobHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.jobs.Delete(c.Context(), c.Params("jobId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *JobHandler) HandleQueueCounts(c *fiber.Ctx) error {
	counts, err := h.jobs.LaneCounts(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	lanes := make(map[string]queue.Counts, len(counts))
	total := 0
	for lane, cnt := range counts {
		lanes[string(lane)] = cnt
		total += cnt.Total()
	}
	return c.JSON(QueueCountsResponse{Success: true, Lanes: lanes, Total: total})
}
