package validations

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domainConversion "github.com/planconv/planconv/domains/conversion"
	pkgError "github.com/planconv/planconv/pkg/error"
)

// ValidateConvertRequest checks the byte-upload form of a conversion and
// returns the parsed source timestamp.
func ValidateConvertRequest(ctx context.Context, request domainConversion.ConvertRequest) (time.Time, error) {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Document, validation.Required.Error("document body must not be empty")),
		validation.Field(&request.SourceTimestamp, validation.Required, validation.Date(time.RFC3339)),
	)
	if err != nil {
		return time.Time{}, pkgError.ValidationError(err.Error())
	}

	sourceTimestamp, err := time.Parse(time.RFC3339, request.SourceTimestamp)
	if err != nil {
		return time.Time{}, pkgError.ValidationError(err.Error())
	}
	return sourceTimestamp, nil
}

// ValidateConvertURLRequest checks the by-URL form of a conversion and
// returns the parsed source timestamp.
func ValidateConvertURLRequest(ctx context.Context, request domainConversion.ConvertURLRequest) (time.Time, error) {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.URL, validation.Required, is.URL),
		validation.Field(&request.SourceTimestamp, validation.Required, validation.Date(time.RFC3339)),
	)
	if err != nil {
		return time.Time{}, pkgError.ValidationError(err.Error())
	}

	sourceTimestamp, err := time.Parse(time.RFC3339, request.SourceTimestamp)
	if err != nil {
		return time.Time{}, pkgError.ValidationError(err.Error())
	}
	return sourceTimestamp, nil
}
