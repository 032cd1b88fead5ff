package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/planconv/planconv/domains/conversion"
)

// PageContent is the extracted content of a single page.
type PageContent struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Document is the structured JSON a conversion produces.
type Document struct {
	PageCount int           `json:"page_count"`
	Pages     []PageContent `json:"pages"`
	// IssueDate is the document's embedded issue date in unix
	// milliseconds, when one could be sniffed from the text.
	IssueDate   *int64 `json:"issue_date,omitempty"`
	ConvertedAt int64  `json:"converted_at"`
}

// PDFConverter extracts per-page text from a PDF document. It implements
// conversion.Converter.
type PDFConverter struct {
	maxDocumentSize int64
}

func NewPDFConverter(maxDocumentSize int64) *PDFConverter {
	return &PDFConverter{maxDocumentSize: maxDocumentSize}
}

// Convert parses the document and renders it as structured JSON. Failures
// caused by the input itself wrap conversion.ErrDocumentRejected; a hung
// parse is cut off by ctx.
func (c *PDFConverter) Convert(ctx context.Context, document []byte) (json.RawMessage, error) {
	if c.maxDocumentSize > 0 && int64(len(document)) > c.maxDocumentSize {
		return nil, fmt.Errorf("%w: document of %d bytes exceeds the %d byte limit",
			conversion.ErrDocumentRejected, len(document), c.maxDocumentSize)
	}

	doc, err := c.extract(ctx, document)
	if err != nil {
		return nil, err
	}

	result, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding conversion result: %w", err)
	}
	return result, nil
}

func (c *PDFConverter) extract(ctx context.Context, document []byte) (doc *Document, err error) {
	// The parser panics on some malformed files; those are input failures,
	// not converter crashes.
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("[CONVERTER] PDF parser panicked: %v", r)
			doc = nil
			err = fmt.Errorf("%w: parser failure: %v", conversion.ErrDocumentRejected, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", conversion.ErrDocumentRejected, err)
	}

	doc = &Document{
		PageCount:   reader.NumPage(),
		Pages:       make([]PageContent, 0, reader.NumPage()),
		ConvertedAt: time.Now().UTC().UnixMilli(),
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, textErr := page.GetPlainText(nil)
		if textErr != nil {
			return nil, fmt.Errorf("%w: page %d: %v", conversion.ErrDocumentRejected, i, textErr)
		}

		doc.Pages = append(doc.Pages, PageContent{Page: i, Text: text})

		if doc.IssueDate == nil {
			if issued, ok := sniffIssueDate(text); ok {
				millis := issued.UnixMilli()
				doc.IssueDate = &millis
			}
		}
	}

	return doc, nil
}

// sniffIssueDate looks for a "Datum: <weekday>, dd.mm.yyyy" marker in the
// page text, the convention used by the schedule documents this service was
// built for.
func sniffIssueDate(text string) (time.Time, bool) {
	idx := strings.Index(text, "Datum: ")
	if idx < 0 {
		return time.Time{}, false
	}

	line := text[idx+len("Datum: "):]
	if end := strings.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}
	if comma := strings.LastIndex(line, ", "); comma >= 0 {
		line = line[comma+2:]
	}
	line = strings.TrimSpace(line)

	issued, err := time.ParseInLocation("2.1.2006", line, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return issued, true
}
