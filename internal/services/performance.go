package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Score weights for the monthly ranking.
const (
	WeightClients  = 10.0
	WeightProducts = 4.0
	WeightEvents   = 5.0
	WeightPresence = 0.5
	WeightRevenue  = 0.01
)

type AgentPerformance struct {
	AgentID           uint    `json:"id"`
	Username          string  `json:"username"`
	Name              string  `json:"name"`
	PhotoURL          string  `json:"photo_url"`
	Clients           int     `json:"clients"`
	Products          int     `json:"products"`
	Events            int     `json:"events"`
	PresenceRate      float64 `json:"presence_rate"`
	Revenue           float64 `json:"revenue"`
	SatisfactionScore float64 `json:"satisfaction_score"`
	Score             float64 `json:"score"`
	Rank              int     `json:"rank"`
}

type TeamTotals struct {
	Clients     int     `json:"clients"`
	Products    int     `json:"products"`
	Events      int     `json:"events"`
	Revenue     float64 `json:"revenue"`
	AvgPresence float64 `json:"avg_presence"`
}

type Snapshot struct {
	Month  string             `json:"month"`
	Agents []AgentPerformance `json:"performances"`
	Team   TeamTotals         `json:"team_totals"`
}

type StatusShare struct {
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type PresenceStats struct {
	Month    string                 `json:"month"`
	AgentID  uint                   `json:"agent_id,omitempty"`
	Total    int64                  `json:"total"`
	ByStatus map[string]StatusShare `json:"by_status"`
}

type RankingEntry struct {
	AgentID  uint    `json:"agent_id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	PhotoURL string  `json:"photo_url"`
	Month    string  `json:"month"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

type PerformanceService struct {
	store *repository.Store
	clock Clock
	log   logrus.FieldLogger
}

func NewPerformanceService(store *repository.Store, clock Clock, log logrus.FieldLogger) *PerformanceService {
	return &PerformanceService{store: store, clock: clock, log: log}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// presenceRate is approved over decided presences as a percentage.
func presenceRate(approved, rejected int64) float64 {
	decided := approved + rejected
	if decided == 0 {
		return 0
	}
	return round2(float64(approved) / float64(decided) * 100)
}

func score(p AgentPerformance) float64 {
	return round2(float64(p.Clients)*WeightClients +
		float64(p.Products)*WeightProducts +
		float64(p.Events)*WeightEvents +
		p.PresenceRate*WeightPresence +
		p.Revenue*WeightRevenue)
}

// measure derives one agent's figures from the events it worked and its
// decided presences within the month.
func measure(agent models.Agent, events []models.Event, approved, rejected int64) AgentPerformance {
	companies := make(map[string]struct{})
	revenue := decimal.Zero
	products := 0
	ratedSum, rated := 0, 0

	for _, e := range events {
		companies[e.CompanyName] = struct{}{}
		if e.Performance == nil {
			continue
		}
		revenue = revenue.Add(e.Performance.Revenue)
		products += e.Performance.ProductsSold
		if e.Performance.ClientSatisfaction > 0 {
			ratedSum += e.Performance.ClientSatisfaction
			rated++
		}
	}

	p := AgentPerformance{
		AgentID:      agent.ID,
		Username:     agent.Username,
		Name:         agent.FullName(),
		PhotoURL:     agent.PhotoURL(models.PhotoTypeProfile),
		Clients:      len(companies),
		Products:     products,
		Events:       len(events),
		PresenceRate: presenceRate(approved, rejected),
		Revenue:      revenue.Round(2).InexactFloat64(),
	}
	if rated > 0 {
		p.SatisfactionScore = round2(float64(ratedSum) / float64(rated))
	}
	p.Score = score(p)
	return p
}

// rank orders by score descending, ties by agent ID ascending, and numbers
// the result from 1.
func rank(perfs []AgentPerformance) {
	sort.SliceStable(perfs, func(i, j int) bool {
		if perfs[i].Score != perfs[j].Score {
			return perfs[i].Score > perfs[j].Score
		}
		return perfs[i].AgentID < perfs[j].AgentID
	})
	for i := range perfs {
		perfs[i].Rank = i + 1
	}
}

func totals(perfs []AgentPerformance) TeamTotals {
	var t TeamTotals
	revenue := decimal.Zero
	presence := 0.0
	for _, p := range perfs {
		t.Clients += p.Clients
		t.Products += p.Products
		t.Events += p.Events
		revenue = revenue.Add(decimal.NewFromFloat(p.Revenue))
		presence += p.PresenceRate
	}
	t.Revenue = revenue.Round(2).InexactFloat64()
	if len(perfs) > 0 {
		t.AvgPresence = round2(presence / float64(len(perfs)))
	}
	return t
}

func (s *PerformanceService) snapshot(ctx context.Context, month utils.Month) (*Snapshot, error) {
	agents, err := s.store.Agents.List(ctx, repository.AgentFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list rankable agents: %w", err)
	}

	from, to := month.Start(s.clock.location()), month.End(s.clock.location())
	perfs := make([]AgentPerformance, 0, len(agents))
	for _, agent := range agents {
		events, err := s.store.Events.List(ctx, repository.EventFilter{AgentID: agent.ID, StartFrom: from, StartTo: to})
		if err != nil {
			return nil, fmt.Errorf("list events for agent %d: %w", agent.ID, err)
		}
		counts, err := s.store.Presences.CountByStatus(ctx, repository.PresenceFilter{AgentID: agent.ID, From: from, To: to})
		if err != nil {
			return nil, fmt.Errorf("count presences for agent %d: %w", agent.ID, err)
		}
		perfs = append(perfs, measure(agent, events, counts[models.PresenceApproved], counts[models.PresenceRejected]))
	}

	rank(perfs)
	return &Snapshot{Month: month.String(), Agents: perfs, Team: totals(perfs)}, nil
}

// Snapshot computes the month's figures live without writing anything.
func (s *PerformanceService) Snapshot(ctx context.Context, rawMonth string) (*Snapshot, error) {
	month, err := s.clock.Month(rawMonth)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, month)
}

// CalculateRankings rebuilds the stored ranking for the month from source data.
func (s *PerformanceService) CalculateRankings(ctx context.Context, rawMonth string) ([]RankingEntry, error) {
	month, err := s.clock.Month(rawMonth)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, month)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	rows := make([]models.MonthlyRanking, 0, len(snap.Agents))
	for _, p := range snap.Agents {
		rows = append(rows, models.MonthlyRanking{
			AgentID:      p.AgentID,
			Month:        snap.Month,
			Score:        p.Score,
			Rank:         p.Rank,
			CalculatedAt: now,
		})
	}
	if err := s.store.Rankings.ReplaceMonth(ctx, snap.Month, rows); err != nil {
		return nil, fmt.Errorf("store rankings: %w", err)
	}

	s.log.WithFields(logrus.Fields{"month": snap.Month, "agents": len(rows)}).Info("monthly rankings recalculated")

	entries := make([]RankingEntry, 0, len(snap.Agents))
	for _, p := range snap.Agents {
		entries = append(entries, RankingEntry{
			AgentID:  p.AgentID,
			Username: p.Username,
			Name:     p.Name,
			PhotoURL: p.PhotoURL,
			Month:    snap.Month,
			Score:    p.Score,
			Rank:     p.Rank,
		})
	}
	return entries, nil
}

// Rankings reads the stored ranking; a month never calculated yields an
// empty list.
func (s *PerformanceService) Rankings(ctx context.Context, rawMonth string) ([]RankingEntry, error) {
	month, err := s.clock.Month(rawMonth)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Rankings.ListByMonth(ctx, month.String())
	if err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}

	entries := make([]RankingEntry, 0, len(rows))
	for _, r := range rows {
		e := RankingEntry{AgentID: r.AgentID, Month: r.Month, Score: r.Score, Rank: r.Rank}
		if r.Agent != nil {
			e.Username = r.Agent.Username
			e.Name = r.Agent.FullName()
			e.PhotoURL = r.Agent.PhotoURL(models.PhotoTypeProfile)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *PerformanceService) PresenceStats(ctx context.Context, rawMonth string, agentID uint) (*PresenceStats, error) {
	month, err := s.clock.Month(rawMonth)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Presences.CountByStatus(ctx, repository.PresenceFilter{
		AgentID: agentID,
		From:    month.Start(s.clock.location()),
		To:      month.End(s.clock.location()),
	})
	if err != nil {
		return nil, fmt.Errorf("count presences: %w", err)
	}
	return buildPresenceStats(month.String(), agentID, counts), nil
}

func buildPresenceStats(month string, agentID uint, counts map[string]int64) *PresenceStats {
	stats := &PresenceStats{Month: month, AgentID: agentID, ByStatus: make(map[string]StatusShare, len(models.PresenceStatuses))}
	for _, st := range models.PresenceStatuses {
		stats.Total += counts[st]
	}
	for _, st := range models.PresenceStatuses {
		share := StatusShare{Count: counts[st]}
		if stats.Total > 0 {
			share.Percentage = round2(float64(counts[st]) / float64(stats.Total) * 100)
		}
		stats.ByStatus[st] = share
	}
	return stats
}
