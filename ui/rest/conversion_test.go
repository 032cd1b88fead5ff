package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainConversion "github.com/planconv/planconv/domains/conversion"
	pkgError "github.com/planconv/planconv/pkg/error"
	"github.com/planconv/planconv/ui/rest/middleware"
)

// fakeConversionService implements IConversionUsecase for handler tests.
type fakeConversionService struct {
	result json.RawMessage
	err    error

	gotDocument []byte
	gotURL      string
}

func (f *fakeConversionService) Convert(ctx context.Context, document []byte, sourceTimestamp time.Time) (json.RawMessage, error) {
	f.gotDocument = document
	return f.result, f.err
}

func (f *fakeConversionService) ConvertFromURL(ctx context.Context, url string, sourceTimestamp time.Time) (json.RawMessage, error) {
	f.gotURL = url
	return f.result, f.err
}

func (f *fakeConversionService) Stats(ctx context.Context) (domainConversion.ConversionStats, error) {
	return domainConversion.ConversionStats{
		Cache: domainConversion.CacheStats{TotalEntries: 3, Completed: 2, Reserved: 1},
	}, nil
}

func setupTestApp(service domainConversion.IConversionUsecase) *fiber.App {
	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestConversion(app, service)
	return app
}

func TestConvert_Success(t *testing.T) {
	service := &fakeConversionService{result: json.RawMessage(`{"pages":1}`)}
	app := setupTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/convert?source_timestamp=2024-05-13T06:30:00Z", bytes.NewReader([]byte("ALPHA")))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":1}`, string(body))
	assert.Equal(t, []byte("ALPHA"), service.gotDocument)
}

func TestConvert_EmptyBody(t *testing.T) {
	app := setupTestApp(&fakeConversionService{})

	req := httptest.NewRequest(http.MethodPost, "/convert?source_timestamp=2024-05-13T06:30:00Z", http.NoBody)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestConvert_BadTimestamp(t *testing.T) {
	app := setupTestApp(&fakeConversionService{})

	req := httptest.NewRequest(http.MethodPost, "/convert?source_timestamp=yesterday", bytes.NewReader([]byte("ALPHA")))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestConvert_TimeoutIsRetryable(t *testing.T) {
	service := &fakeConversionService{err: pkgError.TimeoutError("conversion still in progress, retry later")}
	app := setupTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/convert?source_timestamp=2024-05-13T06:30:00Z", bytes.NewReader([]byte("ALPHA")))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "CONVERSION_TIMEOUT", payload["code"])
}

func TestConvert_RejectedDocument(t *testing.T) {
	service := &fakeConversionService{err: pkgError.ConversionRejectedError("not a PDF")}
	app := setupTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/convert?source_timestamp=2024-05-13T06:30:00Z", bytes.NewReader([]byte("garbage")))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestConvert_CrashedConverter(t *testing.T) {
	service := &fakeConversionService{err: pkgError.ConverterCrashedError("converter exceeded its 60s timeout")}
	app := setupTestApp(service)

	req := httptest.NewRequest(http.MethodPost, "/convert?source_timestamp=2024-05-13T06:30:00Z", bytes.NewReader([]byte("ALPHA")))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestConvertFromURL_Success(t *testing.T) {
	service := &fakeConversionService{result: json.RawMessage(`{"pages":2}`)}
	app := setupTestApp(service)

	payload := []byte(`{"url":"https://example.org/monday.pdf","source_timestamp":"2024-05-13T06:30:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/convert/url", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://example.org/monday.pdf", service.gotURL)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":2}`, string(body))
}

func TestConvertFromURL_MissingURL(t *testing.T) {
	app := setupTestApp(&fakeConversionService{})

	payload := []byte(`{"source_timestamp":"2024-05-13T06:30:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/convert/url", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetStats(t *testing.T) {
	app := setupTestApp(&fakeConversionService{})

	req := httptest.NewRequest(http.MethodGet, "/conversions/stats", http.NoBody)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Code    string                           `json:"code"`
		Results domainConversion.ConversionStats `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "SUCCESS", payload.Code)
	assert.Equal(t, int64(3), payload.Results.Cache.TotalEntries)
}
