package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PhotoTypeProfile   = "profile"
	PhotoTypeCover     = "cover"
	PhotoTypeAnimation = "animation"
)

var PhotoTypes = []string{PhotoTypeProfile, PhotoTypeCover, PhotoTypeAnimation}

type Agent struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Username      string          `json:"username" gorm:"uniqueIndex;size:150;not null"`
	Email         string          `json:"email" gorm:"size:254"`
	PasswordHash  string          `json:"-" gorm:"not null"`
	FirstName     string          `json:"first_name" gorm:"size:150"`
	LastName      string          `json:"last_name" gorm:"size:150"`
	Age           *int            `json:"age,omitempty"`
	Gender        *string         `json:"gender,omitempty" gorm:"size:10"` // Male, Female, Other
	Location      *string         `json:"location,omitempty" gorm:"size:100"`
	PhoneNumber   *string         `json:"phone_number,omitempty" gorm:"size:20"`
	Measurements  *string         `json:"measurements,omitempty" gorm:"size:100"`
	TotalPayments decimal.Decimal `json:"total_payments" gorm:"type:decimal(12,2);not null;default:0"`
	IsAdmin       bool            `json:"is_admin" gorm:"not null;default:false"`
	IsActive      bool            `json:"is_active" gorm:"not null;default:true"`
	LastLogin     *time.Time      `json:"last_login,omitempty"`
	Photos        []AgentPhoto    `json:"photos,omitempty" gorm:"foreignKey:AgentID"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (a *Agent) FullName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	case a.LastName != "":
		return a.LastName
	}
	return a.Username
}

// PhotoURL returns the URL of the photo of the given type, or "".
func (a *Agent) PhotoURL(photoType string) string {
	for _, p := range a.Photos {
		if p.PhotoType == photoType {
			return p.URL
		}
	}
	return ""
}

type AgentPhoto struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AgentID   uint      `json:"agent_id" gorm:"not null;uniqueIndex:idx_agent_photo_type,priority:1"`
	PhotoType string    `json:"photo_type" gorm:"size:20;not null;uniqueIndex:idx_agent_photo_type,priority:2"`
	URL       string    `json:"url" gorm:"not null"`
	ObjectKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
