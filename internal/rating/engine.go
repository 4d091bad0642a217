package rating

import (
	"context"

	"github.com/rs/zerolog"

	"fishcast/internal/metrics"
	"fishcast/internal/models"
)

// Engine combines the always-present rule rater with an optional
// summarizer. Summarizer failures only cost richer text, never the request.
type Engine struct {
	rules      *RuleRater
	summarizer Summarizer // nil when enrichment is not configured
	log        zerolog.Logger
}

func NewEngine(summarizer Summarizer, log zerolog.Logger) *Engine {
	return &Engine{
		rules:      NewRuleRater(),
		summarizer: summarizer,
		log:        log,
	}
}

// Rate fills in the record's rating and recommendation. The rule-based
// result is computed first so a summarizer failure degrades to it without
// any partially-rated state.
func (e *Engine) Rate(ctx context.Context, rec *models.DailyRecord) {
	rating, recommendation := e.rules.Rate(*rec)
	rec.Rating = rating
	rec.Recommendation = recommendation

	if e.summarizer == nil {
		return
	}

	enriched, text, err := e.summarizer.Summarize(ctx, *rec)
	if err != nil {
		metrics.SummarizerCallsTotal.WithLabelValues("error").Inc()
		e.log.Warn().Err(err).Time("date", rec.Date).Msg("summarizer failed, using rule-based rating")
		return
	}
	metrics.SummarizerCallsTotal.WithLabelValues("ok").Inc()
	rec.Rating = enriched
	rec.Recommendation = text
}
