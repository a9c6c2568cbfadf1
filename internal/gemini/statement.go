package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gl "google.golang.org/api/generativelanguage/v1beta"

	"weddingsync/internal/core"
	"weddingsync/internal/extractor"
)

const statementPrompt = "Analyze the attached bank statement or transaction export. Extract: total debits (outgoing), total credits (incoming), opening balance, closing balance, and specifically identify transactions from the last 24 hours of the statement period. If no transactions exist within that 24-hour window, provide the 5 most recent transactions from the end of the statement. Return valid JSON only."

const extractPrompt = "Extract all text content from this bank statement. Maintain the reading order and layout as much as possible in plain text. Do not include any analysis, just the raw extracted text."

type transactionPayload struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      *float64 `json:"amount" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=debit credit"`
}

type statementPayload struct {
	TotalDebits     *float64             `json:"totalDebits" validate:"required"`
	TotalCredits    *float64             `json:"totalCredits" validate:"required"`
	OpeningBalance  *float64             `json:"openingBalance" validate:"required"`
	ClosingBalance  *float64             `json:"closingBalance" validate:"required"`
	StatementPeriod string               `json:"statementPeriod"`
	TopTransactions []transactionPayload `json:"topTransactions" validate:"required,dive"`
}

// analysis converts the payload, failing on any amount that does not fit
// in cents.
func (p statementPayload) analysis() (core.BankAnalysis, error) {
	a := core.BankAnalysis{
		StatementPeriod: strings.TrimSpace(p.StatementPeriod),
		TopTransactions: make([]core.BankTransaction, 0, len(p.TopTransactions)),
	}
	totals := []struct {
		dst *core.Money
		src float64
	}{
		{&a.TotalDebits, *p.TotalDebits},
		{&a.TotalCredits, *p.TotalCredits},
		{&a.OpeningBalance, *p.OpeningBalance},
		{&a.ClosingBalance, *p.ClosingBalance},
	}
	for _, t := range totals {
		m, err := core.FromFloat(t.src)
		if err != nil {
			return core.BankAnalysis{}, err
		}
		*t.dst = m
	}
	for i, t := range p.TopTransactions {
		amount, err := core.FromFloat(*t.Amount)
		if err != nil {
			return core.BankAnalysis{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		a.TopTransactions = append(a.TopTransactions, core.BankTransaction{
			Date:        strings.TrimSpace(t.Date),
			Description: strings.TrimSpace(t.Description),
			Amount:      amount,
			Type:        core.TransactionType(t.Type),
		})
	}
	return a, nil
}

// statementPart picks how a statement is handed to the model: text files as
// text, PDFs as their locally extracted text when that is readable, and
// everything else inline.
func statementPart(ctx context.Context, doc Document) *gl.Part {
	switch extractor.Classify(doc.Name, doc.ContentType) {
	case extractor.KindText:
		return textPart("File Content (" + doc.Name + "):\n\n" + string(doc.Data))
	case extractor.KindPDF:
		text, err := extractor.PDFTextCombined(doc.Data)
		if err == nil {
			return textPart("File Content (" + doc.Name + ", extracted text):\n\n" + text)
		}
		slog.DebugContext(ctx, "Local PDF extraction failed, sending document inline",
			"component", "gemini",
			"file", doc.Name,
			"error", err)
		return inlinePart("application/pdf", doc.Data)
	default:
		return inlinePart(extractor.MimeType(doc.Name, doc.ContentType), doc.Data)
	}
}

// AnalyzeStatement summarises a bank statement. The result is meant to be
// staged and shown to the user before it overwrites anything.
func (c *Client) AnalyzeStatement(ctx context.Context, doc Document) (core.BankAnalysis, error) {
	if len(doc.Data) == 0 {
		return core.BankAnalysis{}, newError(MsgEmptyFile, extractor.ErrEmptyDocument)
	}

	req := &gl.GenerateContentRequest{
		Contents:         userContent(statementPart(ctx, doc), textPart(statementPrompt)),
		GenerationConfig: statementConfig,
	}
	resp, err := c.generate(ctx, "analyze_statement", req)
	if err != nil {
		if isUnsupportedInput(err) {
			return core.BankAnalysis{}, newError(MsgUnsupportedFormat, err)
		}
		return core.BankAnalysis{}, newError(MsgAnalysisFailed, err)
	}

	text := responseText(resp)
	if text == "" {
		return core.BankAnalysis{}, newError(MsgEmptyResponse, errors.New("no text in response"))
	}
	var p statementPayload
	if err := decodeJSON(text, &p); err != nil {
		return core.BankAnalysis{}, newError(MsgInvalidResponse, err)
	}
	for i := range p.TopTransactions {
		p.TopTransactions[i].Type = strings.ToLower(strings.TrimSpace(p.TopTransactions[i].Type))
	}
	if err := c.validate.Struct(p); err != nil {
		return core.BankAnalysis{}, newError(MsgInvalidResponse, err)
	}
	a, err := p.analysis()
	if err != nil {
		return core.BankAnalysis{}, newError(MsgInvalidResponse, err)
	}
	return a, nil
}

// ExtractText transcribes a statement to plain text. Text files come back
// unchanged and PDFs are read locally first; the model is only asked when
// local extraction finds nothing readable.
func (c *Client) ExtractText(ctx context.Context, doc Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", newError(MsgEmptyFile, extractor.ErrEmptyDocument)
	}
	kind := extractor.Classify(doc.Name, doc.ContentType)
	if kind == extractor.KindText {
		return string(doc.Data), nil
	}
	if kind == extractor.KindPDF {
		if text, err := extractor.PDFTextCombined(doc.Data); err == nil {
			return text, nil
		}
	}

	req := &gl.GenerateContentRequest{
		Contents: userContent(
			inlinePart(extractor.MimeType(doc.Name, doc.ContentType), doc.Data),
			textPart(extractPrompt),
		),
	}
	resp, err := c.generate(ctx, "extract_text", req)
	if err != nil {
		return "", newError(MsgExtractionFailed, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", newError(MsgExtractionFailed, errors.New("no text in response"))
	}
	return text, nil
}
