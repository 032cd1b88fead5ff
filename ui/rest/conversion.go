package rest

import (
	"github.com/gofiber/fiber/v2"

	domainConversion "github.com/planconv/planconv/domains/conversion"
	pkgError "github.com/planconv/planconv/pkg/error"
	"github.com/planconv/planconv/pkg/utils"
	"github.com/planconv/planconv/validations"
)

type Conversion struct {
	Service domainConversion.IConversionUsecase
}

func InitRestConversion(app fiber.Router, service domainConversion.IConversionUsecase) Conversion {
	rest := Conversion{Service: service}
	app.Post("/convert", rest.Convert)
	app.Post("/convert/url", rest.ConvertFromURL)
	app.Get("/conversions/stats", rest.GetStats)

	return rest
}

// Convert accepts the raw document bytes as the request body and the
// source timestamp as the source_timestamp query parameter (RFC 3339).
func (handler *Conversion) Convert(c *fiber.Ctx) error {
	request := domainConversion.ConvertRequest{
		Document:        c.Body(),
		SourceTimestamp: c.Query("source_timestamp"),
	}

	sourceTimestamp, err := validations.ValidateConvertRequest(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	result, err := handler.Service.Convert(c.UserContext(), request.Document, sourceTimestamp)
	utils.PanicIfNeeded(err)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(result)
}

func (handler *Conversion) ConvertFromURL(c *fiber.Ctx) error {
	var request domainConversion.ConvertURLRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
	}

	sourceTimestamp, err := validations.ValidateConvertURLRequest(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	result, err := handler.Service.ConvertFromURL(c.UserContext(), request.URL, sourceTimestamp)
	utils.PanicIfNeeded(err)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(result)
}

func (handler *Conversion) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Conversion stats retrieved",
		Results: stats,
	})
}
