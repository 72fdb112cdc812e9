// Package prioritize scores and ranks recommendation records by estimated
// impact, effort, confidence, and timeline. Scoring is a deterministic pure
// function of the input record: identical input always yields identical
// scores and rank within a fixed set.
package prioritize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rankwise/analytics-core/internal/domain/errors"
	"github.com/rankwise/analytics-core/internal/domain/stats"
	"github.com/rankwise/analytics-core/internal/metrics"
)

// Priority labels, checked in order: a quick win needs a high final score,
// low effort and a short timeline all at once
type Priority string

const (
	PriorityQuickWin   Priority = "QUICK WIN"
	PriorityHighImpact Priority = "HIGH IMPACT"
	PriorityStrategic  Priority = "STRATEGIC"
)

// Categorical scoring maps. Parenthetical qualifiers like "Low (5-10h)" or
// "High (85%)" are stripped before lookup; unrecognized values fall back to
// the documented Medium-equivalent defaults.
var (
	effortScores = map[string]float64{
		"Low":    2,
		"Medium": 5,
		"High":   8,
	}
	confidenceMultipliers = map[string]float64{
		"High":   1.0,
		"Medium": 0.8,
		"Low":    0.6,
	}
	timelineScores = map[string]float64{
		"2 weeks":  3,
		"1 month":  2,
		"3 months": 1,
		"6 months": 0.5,
	}
)

const (
	defaultEffortScore          = 5
	defaultConfidenceMultiplier = 0.8
	defaultTimelineScore        = 1
)

// Record is a recommendation produced by the upstream insight-generation
// step. The engine enriches it in place with scores, a priority label, and
// a rank; it never replaces the original fields.
type Record struct {
	Recommendation      string   `json:"recommendation" validate:"required"`
	Timeline            string   `json:"timeline,omitempty"`
	Effort              string   `json:"effort,omitempty"`
	ImpactEstimate      string   `json:"impact_estimate,omitempty"`
	Confidence          string   `json:"confidence,omitempty"`
	Reasoning           string   `json:"reasoning,omitempty"`
	DataEvidence        []string `json:"data_evidence,omitempty"`
	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	KPIs                []string `json:"kpis,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty"`
	Risks               []string `json:"risks,omitempty"`

	// appended by the engine
	ImpactScore      float64    `json:"impact_score"`
	EffortScore      float64    `json:"effort_score"`
	ROIScore         float64    `json:"roi_score"`
	FinalScore       float64    `json:"final_score"`
	Priority         Priority   `json:"priority"`
	Rank             int        `json:"rank"`
	ScoringBreakdown *Breakdown `json:"scoring_breakdown,omitempty"`
}

// Breakdown exposes the unrounded components behind a final score
type Breakdown struct {
	Impact               float64 `json:"impact"`
	Effort               float64 `json:"effort"`
	ConfidenceMultiplier float64 `json:"confidence_multiplier"`
	TimelineUrgency      float64 `json:"timeline_urgency"`
	ROI                  float64 `json:"roi"`
}

// Summary aggregates a prioritized batch
type Summary struct {
	TotalRecommendations int               `json:"total_recommendations"`
	Breakdown            PriorityCounts    `json:"breakdown"`
	Percentages          PriorityPercents  `json:"percentages"`
	AverageScores        AverageScoreStats `json:"average_scores"`
	TopPriority          string            `json:"top_priority,omitempty"`
}

type PriorityCounts struct {
	QuickWins  int `json:"quick_wins"`
	HighImpact int `json:"high_impact"`
	Strategic  int `json:"strategic"`
}

type PriorityPercents struct {
	QuickWins  float64 `json:"quick_wins"`
	HighImpact float64 `json:"high_impact"`
	Strategic  float64 `json:"strategic"`
}

type AverageScoreStats struct {
	Impact float64 `json:"impact"`
	Effort float64 `json:"effort"`
	ROI    float64 `json:"roi"`
}

// Engine is the stateless prioritization engine. Construct one per caller
// and inject it; there is no package-level instance.
type Engine struct {
	validate *validator.Validate
	registry *metrics.Registry
}

// NewEngine creates a new prioritization engine
func NewEngine(registry *metrics.Registry) *Engine {
	return &Engine{
		validate: validator.New(),
		registry: registry,
	}
}

// Score enriches a single record with its component and composite scores
func (e *Engine) Score(rec *Record) {
	impact := e.impactScore(rec)
	effort := e.effortScore(rec)
	confidence := confidenceMultiplier(rec.Confidence)
	timeline := timelineScore(rec.Timeline)

	roi := impact / math.Max(effort, 1) * confidence
	final := roi + timeline

	rec.ImpactScore = stats.Round2(impact)
	rec.EffortScore = effort
	rec.ROIScore = stats.Round2(roi)
	rec.FinalScore = stats.Round2(final)
	rec.Priority = priorityLabel(final, effort, timeline)
	rec.ScoringBreakdown = &Breakdown{
		Impact:               impact,
		Effort:               effort,
		ConfidenceMultiplier: confidence,
		TimelineUrgency:      timeline,
		ROI:                  roi,
	}
}

// Prioritize validates, scores, and ranks a batch. Records come back
// sorted by final score descending with 1-based ranks assigned.
func (e *Engine) Prioritize(ctx context.Context, records []Record) ([]Record, error) {
	scored := make([]Record, len(records))
	copy(scored, records)

	for i := range scored {
		if err := e.validate.Struct(&scored[i]); err != nil {
			return nil, errors.NewValidationError("INVALID_RECOMMENDATION",
				fmt.Sprintf("recommendation at index %d is invalid", i)).WithCause(err)
		}
		e.Score(&scored[i])
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	e.registry.RecommendationsScored.Add(ctx, int64(len(scored)))
	return scored, nil
}

// Summarize computes batch statistics over an already-prioritized list
func (e *Engine) Summarize(records []Record) *Summary {
	total := len(records)
	summary := &Summary{TotalRecommendations: total}
	if total == 0 {
		return summary
	}

	var impactSum, effortSum, roiSum float64
	for _, r := range records {
		switch r.Priority {
		case PriorityQuickWin:
			summary.Breakdown.QuickWins++
		case PriorityHighImpact:
			summary.Breakdown.HighImpact++
		default:
			summary.Breakdown.Strategic++
		}
		impactSum += r.ImpactScore
		effortSum += r.EffortScore
		roiSum += r.ROIScore
	}

	n := float64(total)
	summary.Percentages = PriorityPercents{
		QuickWins:  stats.Round1(float64(summary.Breakdown.QuickWins) / n * 100),
		HighImpact: stats.Round1(float64(summary.Breakdown.HighImpact) / n * 100),
		Strategic:  stats.Round1(float64(summary.Breakdown.Strategic) / n * 100),
	}
	summary.AverageScores = AverageScoreStats{
		Impact: stats.Round2(impactSum / n),
		Effort: stats.Round2(effortSum / n),
		ROI:    stats.Round2(roiSum / n),
	}
	summary.TopPriority = records[0].Recommendation

	return summary
}

// impactScore estimates business impact from the free-text estimate:
// click and conversion counts scale in, revenue mentions and data evidence
// add flat bonuses, all capped at 10
func (e *Engine) impactScore(rec *Record) float64 {
	score := 0.0
	text := strings.ToLower(rec.ImpactEstimate)

	if clicks := ExtractKeywordNumber(text, "click"); clicks > 0 {
		score += math.Min(clicks/50, 5)
	}
	if conversions := ExtractKeywordNumber(text, "conversion"); conversions > 0 {
		score += math.Min(conversions/10, 3)
	}
	if strings.Contains(text, "$") || strings.Contains(text, "revenue") || strings.Contains(text, "value") {
		score += 2
	}
	if len(rec.DataEvidence) > 0 {
		score += 1
	}

	return math.Min(score, 10)
}

// effortScore maps the categorical effort level, bumped for heavy
// dependency lists and long implementation plans, capped at 10
func (e *Engine) effortScore(rec *Record) float64 {
	score, ok := effortScores[stripQualifier(rec.Effort)]
	if !ok {
		score = defaultEffortScore
	}
	if len(rec.Dependencies) > 2 {
		score++
	}
	if len(rec.ImplementationSteps) > 5 {
		score += 0.5
	}
	return math.Min(score, 10)
}

func confidenceMultiplier(confidence string) float64 {
	if m, ok := confidenceMultipliers[stripQualifier(confidence)]; ok {
		return m
	}
	return defaultConfidenceMultiplier
}

func timelineScore(timeline string) float64 {
	if s, ok := timelineScores[timeline]; ok {
		return s
	}
	return defaultTimelineScore
}

func priorityLabel(finalScore, effortScore, timelineScore float64) Priority {
	switch {
	case finalScore > 8 && effortScore < 4 && timelineScore >= 2:
		return PriorityQuickWin
	case finalScore > 6:
		return PriorityHighImpact
	default:
		return PriorityStrategic
	}
}

// stripQualifier removes a trailing parenthetical like "(5-10h)" or "(85%)"
func stripQualifier(value string) string {
	if i := strings.Index(value, "("); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}
