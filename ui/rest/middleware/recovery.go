package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	pkgError "github.com/planconv/planconv/pkg/error"
	"github.com/planconv/planconv/pkg/utils"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err != nil {
				var res utils.ResponseData
				res.Status = 500
				res.Code = "INTERNAL_SERVER_ERROR"
				res.Message = fmt.Sprintf("%v", err)

				typedErr, isTypedError := err.(pkgError.GenericError)
				if isTypedError {
					res.Status = typedErr.StatusCode()
					res.Code = typedErr.ErrCode()
					res.Message = typedErr.Error()
					logrus.Debugf("Request failed: %s (%s)", res.Message, res.Code)
				} else {
					logrus.Errorf("Panic recovered in middleware: %v", err)
				}

				if res.Status == fiber.StatusGatewayTimeout {
					ctx.Set(fiber.HeaderRetryAfter, "30")
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}
