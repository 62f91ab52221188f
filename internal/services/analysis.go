package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Analyzer turns a monthly snapshot into the text of a JSON analysis.
type Analyzer interface {
	Analyze(ctx context.Context, snap *Snapshot) (string, error)
}

type TopPerformer struct {
	Name             string   `json:"name"`
	Highlights       []string `json:"highlights"`
	ImprovementAreas []string `json:"improvement_areas"`
}

type TeamInsights struct {
	Strengths  []string `json:"strengths"`
	Challenges []string `json:"challenges"`
	Trends     []string `json:"trends"`
}

// AnalysisDocument is the shape analyzers are asked to produce.
type AnalysisDocument struct {
	TopPerformer    TopPerformer `json:"top_performer"`
	TeamInsights    TeamInsights `json:"team_insights"`
	Recommendations []string     `json:"recommendations"`
	Error           string       `json:"error,omitempty"`
	RawResponse     string       `json:"raw_response,omitempty"`
}

type AnalysisResult struct {
	Month     string          `json:"month"`
	Analysis  json.RawMessage `json:"analysis"`
	Cached    bool            `json:"cached"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type AnalysisService struct {
	store    *repository.Store
	perf     *PerformanceService
	analyzer Analyzer
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewAnalysisService(store *repository.Store, perf *PerformanceService, analyzer Analyzer, timeout time.Duration, log logrus.FieldLogger) *AnalysisService {
	return &AnalysisService{store: store, perf: perf, analyzer: analyzer, timeout: timeout, log: log}
}

// Analysis returns the cached analysis for the month, generating and storing
// a new one when none exists or refresh is set. Analyzer failures leave the
// cache untouched.
func (s *AnalysisService) Analysis(ctx context.Context, rawMonth string, refresh bool) (*AnalysisResult, error) {
	month, err := s.perf.clock.Month(rawMonth)
	if err != nil {
		return nil, err
	}

	if !refresh {
		cached, err := s.store.Analyses.GetByMonth(ctx, month.String())
		switch {
		case err == nil:
			return &AnalysisResult{Month: cached.Month, Analysis: json.RawMessage(cached.Analysis), Cached: true, UpdatedAt: cached.UpdatedAt}, nil
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("read cached analysis: %w", err)
		}
	}

	snap, err := s.perf.snapshot(ctx, month)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	raw, err := s.analyzer.Analyze(callCtx, snap)
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}

	doc, ok := normalizeAnalysis(raw, snap)
	if !ok {
		s.log.WithField("month", snap.Month).Warn("analyzer returned invalid JSON, storing fallback analysis")
	}

	row := &models.AIAnalysis{Month: snap.Month, Analysis: datatypes.JSON(doc)}
	if err := s.store.Analyses.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	return &AnalysisResult{Month: row.Month, Analysis: json.RawMessage(row.Analysis), UpdatedAt: row.UpdatedAt}, nil
}

// stripFence removes a surrounding ``` or ```json block some models emit.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag, whatever its case.
	if tag, rest, ok := strings.Cut(s, "\n"); ok && !strings.ContainsAny(tag, "{[") {
		s = rest
	} else if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizeAnalysis returns raw when it is a JSON object, otherwise the
// fallback document carrying the raw text and false.
func normalizeAnalysis(raw string, snap *Snapshot) ([]byte, bool) {
	body := stripFence(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err == nil {
		return []byte(body), true
	}
	fallback := FallbackAnalysis(snap)
	fallback.Error = "could not generate a valid analysis"
	fallback.RawResponse = raw
	out, _ := json.Marshal(fallback)
	return out, false
}

// FallbackAnalysis is the default document used when an analyzer response
// cannot be parsed.
func FallbackAnalysis(snap *Snapshot) AnalysisDocument {
	name := "Unknown"
	if len(snap.Agents) > 0 {
		name = snap.Agents[0].Name
	}
	return AnalysisDocument{
		TopPerformer: TopPerformer{
			Name:             name,
			Highlights:       []string{"Generated the most revenue", "Strong client acquisition", "High presence rate"},
			ImprovementAreas: []string{"Could improve product sales", "Consider a wider range of event types"},
		},
		TeamInsights: TeamInsights{
			Strengths:  []string{"Good overall performance", "Strong revenue generation"},
			Challenges: []string{"Inconsistent presence rates", "Uneven product sales"},
			Trends:     []string{"Growing client acquisition", "Month over month revenue growth"},
		},
		Recommendations: []string{
			"Run team training on product sales techniques",
			"Recognise and reward consistent presence",
			"Share top performers' practices with the team",
		},
	}
}

// LocalAnalyzer derives an analysis from the snapshot figures alone. It is
// used when no language model is configured.
type LocalAnalyzer struct{}

func (LocalAnalyzer) Analyze(_ context.Context, snap *Snapshot) (string, error) {
	doc := AnalysisDocument{
		TopPerformer:    TopPerformer{Name: "Unknown", Highlights: []string{}, ImprovementAreas: []string{}},
		TeamInsights:    TeamInsights{Strengths: []string{}, Challenges: []string{}, Trends: []string{}},
		Recommendations: []string{},
	}

	if len(snap.Agents) > 0 {
		top := snap.Agents[0]
		doc.TopPerformer.Name = top.Name
		doc.TopPerformer.Highlights = append(doc.TopPerformer.Highlights,
			fmt.Sprintf("Ranked first with a score of %.2f", top.Score),
			fmt.Sprintf("Worked %d events for %d clients", top.Events, top.Clients),
		)
		if top.PresenceRate < 80 {
			doc.TopPerformer.ImprovementAreas = append(doc.TopPerformer.ImprovementAreas,
				fmt.Sprintf("Presence rate of %.2f%% is below 80%%", top.PresenceRate))
		}
		if top.Products == 0 {
			doc.TopPerformer.ImprovementAreas = append(doc.TopPerformer.ImprovementAreas, "No products sold this month")
		}
	}

	t := snap.Team
	doc.TeamInsights.Strengths = append(doc.TeamInsights.Strengths,
		fmt.Sprintf("%d events covered for %d clients", t.Events, t.Clients),
		fmt.Sprintf("Revenue of %.2f across the team", t.Revenue),
	)
	if t.AvgPresence < 80 {
		doc.TeamInsights.Challenges = append(doc.TeamInsights.Challenges,
			fmt.Sprintf("Average presence rate of %.2f%%", t.AvgPresence))
		doc.Recommendations = append(doc.Recommendations, "Follow up on rejected check-ins with the agents concerned")
	}
	idle := 0
	for _, p := range snap.Agents {
		if p.Events == 0 {
			idle++
		}
	}
	if idle > 0 {
		doc.TeamInsights.Challenges = append(doc.TeamInsights.Challenges,
			fmt.Sprintf("%d agents had no event this month", idle))
		doc.Recommendations = append(doc.Recommendations, "Spread event assignments across more agents")
	}
	doc.Recommendations = append(doc.Recommendations, "Share top performers' practices with the team")

	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	return string(out), nil
}
