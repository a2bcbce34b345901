package models

import "time"

// Trader is one eToro copy trader tracked by the dashboard. Profile and
// performance figures come from the BullAware investor API.
type Trader struct {
	ID            uint64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Username      string     `json:"username" gorm:"column:username;type:varchar(64);not null;uniqueIndex"`
	DisplayName   *string    `json:"display_name,omitempty" gorm:"column:display_name;type:varchar(128)"`
	AvatarURL     *string    `json:"avatar_url,omitempty" gorm:"column:avatar_url;type:varchar(512)"`
	RiskScore     *int       `json:"risk_score,omitempty" gorm:"column:risk_score"`
	Copiers       *int       `json:"copiers,omitempty" gorm:"column:copiers"`
	GainYTD       *float64   `json:"gain_ytd,omitempty" gorm:"column:gain_ytd"`
	Gain12M       *float64   `json:"gain_12m,omitempty" gorm:"column:gain_12m"`
	WinRatio      *float64   `json:"win_ratio,omitempty" gorm:"column:win_ratio"`
	ProfitableWks *float64   `json:"profitable_weeks_pct,omitempty" gorm:"column:profitable_weeks_pct"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty" gorm:"column:last_synced_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Portfolio []TraderPortfolioItem `json:"portfolio,omitempty" gorm:"foreignKey:TraderID"`
}

func (Trader) TableName() string { return "traders" }

// TraderPortfolioItem is one holding inside a trader's copied portfolio.
type TraderPortfolioItem struct {
	ID          uint64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TraderID    uint64    `json:"trader_id" gorm:"column:trader_id;not null;uniqueIndex:uniq_trader_symbol"`
	Symbol      string    `json:"symbol" gorm:"column:symbol;type:varchar(32);not null;uniqueIndex:uniq_trader_symbol"`
	Direction   string    `json:"direction" gorm:"column:direction;type:varchar(8);not null;default:'BUY'"`
	InvestedPct float64   `json:"invested_pct" gorm:"column:invested_pct;not null;default:0"`
	AvgOpenRate *float64  `json:"avg_open_rate,omitempty" gorm:"column:avg_open_rate"`
	ProfitPct   *float64  `json:"profit_pct,omitempty" gorm:"column:profit_pct"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (TraderPortfolioItem) TableName() string { return "trader_portfolio_items" }
