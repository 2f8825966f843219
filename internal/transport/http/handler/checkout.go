package handler

import (
	"errors"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/Ssanntii/Stock-Final-UTN/internal/service"
	"github.com/Ssanntii/Stock-Final-UTN/internal/transport/http/middleware"
	"github.com/Ssanntii/Stock-Final-UTN/pkg/logging"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	service service.CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(service service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger,
	}
}

func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	principal, ok := c.Locals(middleware.PrincipalKey).(*identity.Principal)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": true,
			"msg":   "Unauthorized",
		})
	}

	cart := new(domain.Cart)
	if err := c.BodyParser(cart); err != nil {
		h.logger.Warn(
			"Failed to parse checkout body",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true,
			"msg":   "Invalid request body",
		})
	}

	receipt, err := h.service.Checkout(c.UserContext(), principal, cart)
	if err != nil {
		var notFound *service.ProductNotFoundError
		var insufficient *service.InsufficientStockError

		switch {
		case errors.Is(err, service.ErrInvalidCart):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true,
				"msg":   "No valid products were sent for purchase",
			})
		case errors.As(err, &notFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   true,
				"msg":     "One or more products do not exist",
				"missing": notFound.MissingIDs,
			})
		case errors.As(err, &insufficient):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":     true,
				"msg":       "Insufficient stock for some products",
				"conflicts": insufficient.Conflicts,
			})
		default:
			// Storage failures stay internal; the client gets a generic error.
			logging.Error(
				c.UserContext(),
				h.logger,
				"Checkout failed",
				zap.Int64("user_id", principal.ID),
				zap.Error(err),
			)

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": true,
				"msg":   "Error processing the purchase",
			})
		}
	}

	return c.JSON(fiber.Map{
		"error": false,
		"msg":   "Purchase completed successfully",
		"order": receipt,
	})
}
