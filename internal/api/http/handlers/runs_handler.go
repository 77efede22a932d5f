package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/domain"
)

// RunReader loads a run with its steps.
type RunReader interface {
	Status(ctx context.Context, runID string) (*domain.WorkflowRun, error)
}

// RunRedriver republishes a failed run.
type RunRedriver interface {
	Redrive(ctx context.Context, runID string) error
}

// RunsHandler exposes workflow run status.
type RunsHandler struct {
	runs     RunReader
	redriver RunRedriver
}

// NewRunsHandler constructs handler.
func NewRunsHandler(runs RunReader, redriver RunRedriver) *RunsHandler {
	return &RunsHandler{runs: runs, redriver: redriver}
}

// GetRun GET /api/runs/:id.
func (h *RunsHandler) GetRun(c *fiber.Ctx) error {
	run, err := h.runs.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": runResponse(run)})
}

// Redrive POST /api/runs/:id/redrive.
func (h *RunsHandler) Redrive(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.redriver.Redrive(c.UserContext(), id); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"id": id, "status": "redriven"}})
}

func runResponse(run *domain.WorkflowRun) dto.RunResponse {
	steps := make([]dto.StepResponse, 0, len(run.Steps))
	for _, step := range run.Steps {
		steps = append(steps, dto.StepResponse{
			Name:      step.Name,
			Status:    step.Status,
			Attempts:  step.Attempts,
			LastError: step.LastError,
			Result:    step.Result,
			UpdatedAt: step.UpdatedAt,
		})
	}
	return dto.RunResponse{
		ID:           run.ID,
		WorkflowName: run.WorkflowName,
		EventName:    run.EventName,
		Status:       run.Status,
		Output:       run.Output,
		Error:        run.Error,
		ErrorCode:    run.ErrorCode,
		Executions:   run.Executions,
		Steps:        steps,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
}
