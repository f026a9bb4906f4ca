package server

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/omkar861856/agentic-honeypot32/internal/handbook"
)

type handbookRoutes struct {
	handbook *handbook.Handbook
}

func (r *handbookRoutes) list(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": r.handbook.Entries()})
}

func (r *handbookRoutes) get(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("category"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid category")
	}
	entry, ok := r.handbook.Lookup(name)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown category")
	}
	return c.JSON(entry)
}
