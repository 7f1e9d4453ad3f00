package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
)

const HeaderStripeSignature = "Stripe-Signature"

// PaymentHandler receives the payment processor's webhooks.
type PaymentHandler struct {
	Intake        *ledger.Intake
	WebhookSecret string
}

// Webhook answers 2xx for applied, ignored and duplicate events so the
// processor stops redelivering; 5xx only when a retry could help.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	signature := c.Get(HeaderStripeSignature)

	err := h.Intake.ProcessPaymentEvent(c.UserContext(), payload, signature, h.WebhookSecret)
	if err != nil {
		if domain.IsKind(err, domain.KindSignatureInvalid) {
			slog.Warn("Rejected webhook with bad signature", "ip", c.IP())
		}
		return fail(c, err)
	}

	return c.JSON(domain.OkMessage("Webhook event processed"))
}
