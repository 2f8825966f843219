package http

import (
	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/Ssanntii/Stock-Final-UTN/internal/transport/http/handler"
	"github.com/Ssanntii/Stock-Final-UTN/internal/transport/http/middleware"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Checkout *handler.CheckoutHandler
	Product  *handler.ProductHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, provider identity.Provider) {
	auth := middleware.NewAuthMiddleware(provider)

	products := app.Group("/products")
	products.Get("", h.Product.List)
	products.Get("/:id", h.Product.FindByID)
	products.Post("", auth, h.Product.Create)
	products.Put("/:id", auth, h.Product.Update)
	products.Delete("/:id", auth, h.Product.Delete)

	app.Post("/checkout", auth, h.Checkout.Checkout)
}
