package handler

import (
	"github.com/gofiber/fiber/v2"

	"dealersign/internal/domain/entity"
	"dealersign/internal/infrastructure/queue"
	"dealersign/internal/worker"
)

// WorkerHandler exposes the operational state of the background pipeline.
type WorkerHandler struct {
	jobQueue queue.Queue
	sweeper  *worker.Sweeper
}

func NewWorkerHandler(jobQueue queue.Queue, sweeper *worker.Sweeper) *WorkerHandler {
	return &WorkerHandler{jobQueue: jobQueue, sweeper: sweeper}
}

func (h *WorkerHandler) QueueStatus(c *fiber.Ctx) error {
	attrs, err := h.jobQueue.GetAttributes(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(entity.NewSuccessResponse(attrs, "Queue status"))
}

// TriggerSweep runs one sweep pass immediately, outside the ticker schedule.
func (h *WorkerHandler) TriggerSweep(c *fiber.Ctx) error {
	results := h.sweeper.Sweep(c.Context())
	return c.JSON(entity.NewSuccessResponse(results, "Sweep finished"))
}
