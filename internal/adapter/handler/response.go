package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/digibank/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// statusFor maps a failure kind to the HTTP status returned with it.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidAmount, domain.KindInvalidAccountNumber, domain.KindSelfTransferNotAllowed,
		domain.KindInvalidRequest, domain.KindMalformedEventMetadata, domain.KindSignatureInvalid:
		return http.StatusBadRequest
	case domain.KindSenderNotFound, domain.KindReceiverNotFound, domain.KindAccountNotFound, domain.KindNotificationNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindDuplicateEvent:
		return http.StatusOK
	}
	if domain.IsRetryable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(domain.Fail(err))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return fail(c, domain.NewError(domain.KindInvalidRequest, msg))
}

// bind parses and validates a JSON body.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return domain.Wrap(domain.KindInvalidRequest, "Invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return domain.NewError(domain.KindInvalidRequest, "Invalid fields: "+strings.Join(fields, ", "))
		}
		return domain.Wrap(domain.KindInvalidRequest, "Invalid request body", err)
	}
	return nil
}

// caller is the account authenticated by middleware.Protected.
func caller(c *fiber.Ctx) (int64, error) {
	id, ok := middleware.AccountID(c)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	return id, nil
}
