// Package ai wraps the hosted text-generation service used for moderation,
// promo copy and weekly coaching.
package ai

import (
	"context"
	"errors"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
)

// ErrDisabled is returned by Disabled, used when no API key is configured.
var ErrDisabled = errors.New("ai disabled")

// TextGenerator produces text for a prompt. With jsonOutput the service is
// asked for a JSON object, but callers must still tolerate anything.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
}

type Disabled struct{}

func (Disabled) Generate(context.Context, string, bool) (string, error) {
	return "", ErrDisabled
}

// Call purposes, used as metric labels.
const (
	PurposeModeration = "moderation"
	PurposePromo      = "promo"
	PurposeCoach      = "coach"
)

const callTimeout = 30 * time.Second

// Ask runs one generation with a timeout and records its outcome.
func Ask(ctx context.Context, gen TextGenerator, purpose, prompt string, jsonOutput bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := gen.Generate(ctx, prompt, jsonOutput)
	if err != nil {
		metrics.AICalls.WithLabelValues(purpose, metrics.Failed).Inc()
		if !errors.Is(err, ErrDisabled) {
			logger.WithContext(ctx).Warn("ai call failed", "purpose", purpose, "error", err)
		}
		return "", err
	}
	metrics.AICalls.WithLabelValues(purpose, metrics.OK).Inc()
	return out, nil
}
