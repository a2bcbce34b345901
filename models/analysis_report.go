package models

import "time"

const (
	ReportStatusDraft         = "draft"
	ReportStatusPendingReview = "pending_review"
	ReportStatusApproved      = "approved"
	ReportStatusRejected      = "rejected"
)

const (
	ReportDecisionApprove = "approve"
	ReportDecisionReject  = "reject"
)

// AnalysisReport is an LLM-written trader analysis awaiting Investment
// Committee review. Content is cleaned markdown.
type AnalysisReport struct {
	ID         string     `json:"id" gorm:"column:id;primaryKey;type:char(36)"`
	TraderID   uint64     `json:"trader_id" gorm:"column:trader_id;not null;index"`
	Title      string     `json:"title" gorm:"column:title;type:varchar(255);not null"`
	Content    string     `json:"content" gorm:"column:content;type:mediumtext;not null"`
	ModelUsed  string     `json:"model_used" gorm:"column:model_used;type:varchar(64);not null"`
	Status     string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'pending_review';index"`
	ReviewedBy *string    `json:"reviewed_by,omitempty" gorm:"column:reviewed_by;type:varchar(64)"`
	ReviewNote *string    `json:"review_note,omitempty" gorm:"column:review_note;type:text"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" gorm:"column:reviewed_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Trader *Trader `json:"trader,omitempty" gorm:"foreignKey:TraderID"`
}

func (AnalysisReport) TableName() string { return "analysis_reports" }
