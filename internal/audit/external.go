package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/receipt"
)

// ExternalServiceRuleEngine - calls an external scoring API to make decisions.
// Any failure is treated as "not flagged" so an outage of the scorer never blocks the pipeline.
type ExternalServiceRuleEngine struct {
	client    *http.Client
	scorerURL string
	logger    *slog.Logger
}

func NewExternalServiceRuleEngine(scorerURL string, logger *slog.Logger) *ExternalServiceRuleEngine {
	return &ExternalServiceRuleEngine{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		scorerURL: scorerURL,
		logger:    logger,
	}
}

func (e *ExternalServiceRuleEngine) Audit(ctx context.Context, rcpt domain.Receipt) Result {
	requestBody, err := receipt.Encode(rcpt)
	if err != nil {
		e.logger.Error("failed to encode sale for the scorer", "sale_id", rcpt.SaleID, "error", err)
		return Result{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.scorerURL, bytes.NewReader(requestBody))
	if err != nil {
		e.logger.Error("failed to create scorer request", "error", err)
		return Result{}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("external sale scorer call failed", "error", err)
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("external sale scorer returned non-200 status", "status", resp.Status)
		return Result{}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		e.logger.Error("failed to decode scorer response", "error", err)
		return Result{}
	}
	return result
}

// Chain runs engines in order and returns the first flag.
type Chain []RuleEngine

func (c Chain) Audit(ctx context.Context, rcpt domain.Receipt) Result {
	for _, engine := range c {
		if res := engine.Audit(ctx, rcpt); res.Flagged {
			return res
		}
	}
	return Result{}
}
