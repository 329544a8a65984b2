package controller

import (
	"errors"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/SantiagoCTB/whatsapp-ia/internal/dto"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/serverutils"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/ingest"
)

type ICatalogController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type catalogController struct {
	queue *ingest.Queue
}

func NewCatalogController(queue *ingest.Queue) ICatalogController {
	return &catalogController{queue: queue}
}

func (c *catalogController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/catalog/v1")
	h.Post("ingest", c.Ingest)
	h.Get("ingest/status", c.Status)
}

// Ingest submits a rebuild. The queue holds a single slot; a second submit
// while one runs gets a 409.
func (c *catalogController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	source := req.Source
	if source == "" {
		source = filepath.Base(req.Path)
	}

	jobId, err := c.queue.Submit(req.Path, source)
	if err != nil {
		if errors.Is(err, ingest.ErrJobRunning) {
			return ctx.Status(fiber.StatusConflict).
				JSON(serverutils.ErrorResponse(fiber.StatusConflict, "an ingest job is already running"))
		}
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse(
		"Ingest job accepted",
		dto.IngestAcceptedResponse{JobId: jobId, Status: string(ingest.StateRunning), Source: source},
	))
}

func (c *catalogController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Ingest status", c.queue.Status()))
}
