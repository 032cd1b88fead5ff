package rest

import (
	"github.com/gofiber/fiber/v2"

	domainHealth "github.com/planconv/planconv/domains/health"
	"github.com/planconv/planconv/pkg/utils"
)

type Health struct {
	Service domainHealth.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service domainHealth.IHealthUsecase) Health {
	handler := Health{Service: service}
	app.Get("/health", handler.GetStatus)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	status, err := h.Service.GetStatus(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(utils.ResponseData{
			Status:  500,
			Code:    "INTERNAL_SERVER_ERROR",
			Message: err.Error(),
		})
	}

	httpStatus := 200
	if !status.Healthy {
		httpStatus = 503
	}
	return c.Status(httpStatus).JSON(utils.ResponseData{
		Status:  httpStatus,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: status,
	})
}
