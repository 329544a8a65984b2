package controller

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SantiagoCTB/whatsapp-ia/internal/dto"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
	"github.com/SantiagoCTB/whatsapp-ia/internal/service"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Verify(ctx *fiber.Ctx) error
	Receive(ctx *fiber.Ctx) error
}

type webhookController struct {
	verifyToken    string
	webhookService service.IWebhookService
	log            logger.ILogger
}

func NewWebhookController(verifyToken string, webhookService service.IWebhookService, log logger.ILogger) IWebhookController {
	return &webhookController{
		verifyToken:    verifyToken,
		webhookService: webhookService,
		log:            log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhook")
	h.Get("", c.Verify)
	h.Post("", c.Receive)
}

// Verify answers the Meta subscription handshake with the raw challenge.
func (c *webhookController) Verify(ctx *fiber.Ctx) error {
	mode := ctx.Query("hub.mode")
	token := ctx.Query("hub.verify_token")
	challenge := ctx.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == c.verifyToken {
		return ctx.SendString(challenge)
	}
	return ctx.SendStatus(fiber.StatusForbidden)
}

// Receive always acks with 200; a non-2xx makes Meta redeliver and the dedup
// table already absorbs retries.
func (c *webhookController) Receive(ctx *fiber.Ctx) error {
	var payload dto.WebhookPayload
	if err := ctx.BodyParser(&payload); err != nil {
		c.log.Warn("webhook_controller", "unparseable delivery", map[string]interface{}{
			"error": err.Error(),
		})
		return ctx.SendStatus(fiber.StatusOK)
	}

	c.webhookService.Process(ctx.Context(), &payload)
	return ctx.SendStatus(fiber.StatusOK)
}
