package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

var (
	_ llm.ReportStructurer = (*Client)(nil)
	_ llm.PageTranscriber  = (*Client)(nil)
)

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// StructureReport implements llm.ReportStructurer with a strict json_schema response format.
// It is all-or-nothing: on any error no report is returned.
func (c *Client) StructureReport(ctx context.Context, rawText string) (llm.StructuredReport, []byte, error) {
	start := time.Now()
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return llm.StructuredReport{}, nil, fmt.Errorf("structure: empty text: %w", common.ErrInvalidInput)
	}

	c.logger.Info("llm.structure.start",
		"req_id", common.RequestIDFromContext(ctx),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(rawText),
	)

	schema := llm.BuildReportJSONSchema()
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   llm.ReportSchemaName,
				"strict": true,
				"schema": schema,
			},
		},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(time.Now())},
			{"role": "user", "content": llm.BuildUserPrompt(rawText)},
		},
	}

	raw, err := c.chatCompletion(ctx, "structure", body)
	if err != nil {
		c.logger.Error("llm.structure.http_error",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StructuredReport{}, nil, err
	}

	content, err := firstContent(raw)
	if err != nil {
		c.logger.Error("llm.structure.bad_response", "error", err, "raw_bytes", len(raw))
		return llm.StructuredReport{}, raw, err
	}
	rawContent := []byte(content)

	// Lenient pass first, then strict validation of the result.
	cleaned, _, err := llm.SanitizeReportJSON(rawContent, c.logger)
	if err != nil {
		c.logger.Error("llm.structure.sanitize_failed", "error", err)
		return llm.StructuredReport{}, rawContent, fmt.Errorf("sanitize failed: %w: %w", err, common.ErrValidation)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		c.logger.Error("llm.structure.schema_validation_failed",
			"error", err, "content", string(rawContent),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.StructuredReport{}, rawContent, fmt.Errorf("schema validation failed: %w: %w", err, common.ErrValidation)
	}

	var out llm.StructuredReport
	if err := json.Unmarshal(cleaned, &out); err != nil {
		c.logger.Error("llm.structure.unmarshal_failed", "error", err)
		return llm.StructuredReport{}, rawContent, fmt.Errorf("unmarshal report: %w: %w", err, common.ErrValidation)
	}
	if err := llm.ValidateReport(&out); err != nil {
		c.logger.Error("llm.structure.report_invalid", "error", err)
		return llm.StructuredReport{}, rawContent, err
	}
	out = llm.Reconcile(out, c.logger)

	c.logger.Info("llm.structure.ok",
		"name", out.PersonalInfo.Name,
		"date", out.PersonalInfo.TestDate,
		"tests", len(out.TestResults),
		"errors", len(out.Errors),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

func firstContent(raw []byte) (string, error) {
	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w: %w", err, common.ErrUpstream)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response: %w", common.ErrUpstream)
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s: %w", choice.Message.Refusal, common.ErrUpstream)
	}
	if choice.FinishReason == "length" {
		return "", fmt.Errorf("model output truncated: %w", common.ErrUpstream)
	}
	return strings.TrimSpace(choice.Message.Content), nil
}
