package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gl "google.golang.org/api/generativelanguage/v1beta"

	"weddingsync/internal/core"
	"weddingsync/internal/extractor"
)

// ScanNote marks expenses drafted from a scanned receipt.
const ScanNote = "Imported via Gemini AI Scan"

type receiptPayload struct {
	Vendor     string   `json:"vendor" validate:"required"`
	Category   string   `json:"category"`
	Date       string   `json:"date"`
	Amount     *float64 `json:"amount" validate:"required,gte=0"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

// Receipt is the validated result of a scan.
type Receipt struct {
	Vendor     string     `json:"vendor"`
	Category   string     `json:"category"`
	Date       core.Date  `json:"date"`
	Amount     core.Money `json:"amount"`
	Confidence float64    `json:"confidence"`
}

// Draft turns the receipt into an unsaved, fully paid expense.
func (r Receipt) Draft(account string) core.Expense {
	return core.Expense{
		Name:        r.Vendor,
		Category:    r.Category,
		Date:        r.Date,
		TotalAmount: r.Amount,
		AdvancePaid: r.Amount,
		Account:     account,
		Notes:       ScanNote,
	}
}

func receiptPrompt() string {
	return fmt.Sprintf(`You are a professional wedding budget analyst. Analyze this wedding receipt or invoice.
Extract the following details precisely:
1. Vendor/Merchant Name
2. A category from this list: [%s]
3. The date in YYYY-MM-DD format
4. The total amount paid as a number.

If the document is a PDF, ensure you check all visible pages for the final total.`, strings.Join(core.Categories, ", "))
}

// ScanReceipt extracts vendor, category, date and amount from a receipt
// image or PDF. Unknown categories become "Other" and a missing or
// malformed date becomes today.
func (c *Client) ScanReceipt(ctx context.Context, doc Document) (Receipt, error) {
	if len(doc.Data) == 0 {
		return Receipt{}, newError(MsgEmptyFile, extractor.ErrEmptyDocument)
	}

	req := &gl.GenerateContentRequest{
		Contents: userContent(
			inlinePart(extractor.MimeType(doc.Name, doc.ContentType), doc.Data),
			textPart(receiptPrompt()),
		),
		GenerationConfig: receiptConfig,
	}
	resp, err := c.generate(ctx, "scan_receipt", req)
	if err != nil {
		if isUnsupportedInput(err) {
			return Receipt{}, newError(MsgUnsupportedFormat, err)
		}
		return Receipt{}, newError(MsgScanFailed, err)
	}

	text := responseText(resp)
	if text == "" {
		return Receipt{}, newError(MsgEmptyResponse, errors.New("no text in response"))
	}
	var p receiptPayload
	if err := decodeJSON(text, &p); err != nil {
		return Receipt{}, newError(MsgInvalidResponse, err)
	}
	p.Vendor = strings.TrimSpace(p.Vendor)
	if err := c.validate.Struct(p); err != nil {
		return Receipt{}, newError(MsgInvalidResponse, err)
	}

	amount, err := core.FromFloat(*p.Amount)
	if err != nil {
		return Receipt{}, newError(MsgInvalidResponse, err)
	}
	r := Receipt{
		Vendor:   p.Vendor,
		Category: core.DefaultCategory,
		Date:     core.Date(strings.TrimSpace(p.Date)),
		Amount:   amount,
	}
	if cat := matchCategory(p.Category); cat != "" {
		r.Category = cat
	}
	if t, ok := r.Date.Time(); ok {
		r.Date = core.Date(t.Format(core.DateLayout))
	} else {
		r.Date = core.Today(c.now())
	}
	if p.Confidence != nil {
		r.Confidence = *p.Confidence
	}
	return r, nil
}

func matchCategory(name string) string {
	name = strings.TrimSpace(name)
	for _, c := range core.Categories {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return ""
}
