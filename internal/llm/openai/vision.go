package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

// TranscribePage implements llm.PageTranscriber: one rendered PNG page in, verbatim text out.
func (c *Client) TranscribePage(ctx context.Context, page int, png []byte) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("page %d: empty image: %w", page, common.ErrInvalidInput)
	}
	start := time.Now()

	body := map[string]any{
		"model":       c.cfg.VisionModel,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "system", "content": llm.VisionInstruction},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": fmt.Sprintf("Transcribe page %d verbatim.", page)},
				{"type": "image_url", "image_url": map[string]any{
					"url":    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
					"detail": "high",
				}},
			}},
		},
	}

	raw, err := c.chatCompletion(ctx, "vision", body)
	if err != nil {
		return "", err
	}
	text, err := firstContent(raw)
	if err != nil {
		return "", err
	}

	c.logger.Debug("llm.vision.page_ok",
		"page", page,
		"image_bytes", len(png),
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
