package handles

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Frozenguru/stk/models"
	"github.com/Frozenguru/stk/mpesa"
	"github.com/Frozenguru/stk/telemetry"
)

// Pusher initiates a payment push against the gateway. Satisfied by
// *mpesa.Client; tests substitute a mock.
type Pusher interface {
	STKPush(ctx context.Context, p mpesa.PushParams) ([]byte, error)
}

type Handler struct {
	gateway  Pusher
	log      *zap.Logger
	validate *validator.Validate
}

func New(gateway Pusher, log *zap.Logger) *Handler {
	return &Handler{
		gateway:  gateway,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type stkPushRequest struct {
	Phone       string `json:"phone" validate:"required"`
	Amount      int    `json:"amount" validate:"required,gt=0"`
	Reference   string `json:"reference" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// StkPush validates the inbound request, relays it to the gateway and
// returns the gateway's response body verbatim.
func (h *Handler) StkPush(c *fiber.Ctx) error {
	var requestData stkPushRequest
	if err := c.BodyParser(&requestData); err != nil {
		telemetry.StkPushesTotal.WithLabelValues("rejected").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if err := h.validate.Struct(requestData); err != nil {
		telemetry.StkPushesTotal.WithLabelValues("rejected").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "phone, amount, reference and description are required"})
	}

	body, err := h.gateway.STKPush(c.Context(), mpesa.PushParams{
		Phone:       requestData.Phone,
		Amount:      requestData.Amount,
		Reference:   requestData.Reference,
		Description: requestData.Description,
	})
	if err != nil {
		h.log.Error("STK push failed",
			zap.String("phone", requestData.Phone),
			zap.Int("amount", requestData.Amount),
			zap.Error(err),
		)
		telemetry.StkPushesTotal.WithLabelValues("gateway_error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send STK Push"})
	}

	telemetry.StkPushesTotal.WithLabelValues("accepted").Inc()
	c.Set("Content-Type", "application/json")
	return c.Send(body)
}

// Callback acknowledges the gateway's asynchronous result notification.
// The payload is logged and nothing else; whatever its shape, the gateway
// gets a 200 so it does not re-deliver.
func (h *Handler) Callback(c *fiber.Ctx) error {
	telemetry.CallbacksTotal.Inc()

	var envelope models.CallbackEnvelope
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		h.log.Warn("Callback payload is not the expected shape", zap.ByteString("body", c.Body()))
		return c.SendStatus(fiber.StatusOK)
	}

	cb := envelope.Body.StkCallback
	h.log.Info("Received gateway callback",
		zap.String("merchant_request_id", cb.MerchantRequestID),
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
		zap.String("result_desc", cb.ResultDesc),
	)
	return c.SendStatus(fiber.StatusOK)
}

// Health is a liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
