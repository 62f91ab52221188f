package models

import (
	"time"

	"gorm.io/datatypes"
)

// MonthlyRanking is derived data; only the ranking recompute writes it.
type MonthlyRanking struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	AgentID      uint      `json:"agent_id" gorm:"not null;uniqueIndex:idx_ranking_agent_month,priority:1"`
	Agent        *Agent    `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
	Month        string    `json:"month" gorm:"size:7;not null;uniqueIndex:idx_ranking_agent_month,priority:2;index"`
	Score        float64   `json:"score" gorm:"not null"`
	Rank         int       `json:"rank" gorm:"not null"`
	CalculatedAt time.Time `json:"calculated_at"`
}

type AIAnalysis struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Month     string         `json:"month" gorm:"size:7;uniqueIndex;not null"`
	Analysis  datatypes.JSON `json:"analysis" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (AIAnalysis) TableName() string { return "ai_analyses" }
