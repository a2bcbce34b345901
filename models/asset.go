package models

import "time"

// Asset is one instrument referenced by trader portfolios. Symbol is the
// eToro ticker; ResolvedSymbol is the Yahoo Finance symbol that actually
// answered (exchange suffix included for cross-listed tickers).
type Asset struct {
	ID             uint64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Symbol         string     `json:"symbol" gorm:"column:symbol;type:varchar(32);not null;uniqueIndex"`
	ResolvedSymbol *string    `json:"resolved_symbol,omitempty" gorm:"column:resolved_symbol;type:varchar(32)"`
	Name           *string    `json:"name,omitempty" gorm:"column:name;type:varchar(128)"`
	Sector         *string    `json:"sector,omitempty" gorm:"column:sector;type:varchar(64)"`
	Industry       *string    `json:"industry,omitempty" gorm:"column:industry;type:varchar(64)"`
	LastPrice      *float64   `json:"last_price,omitempty" gorm:"column:last_price"`
	Currency       *string    `json:"currency,omitempty" gorm:"column:currency;type:varchar(8)"`
	PriceUpdatedAt *time.Time `json:"price_updated_at,omitempty" gorm:"column:price_updated_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Asset) TableName() string { return "assets" }
