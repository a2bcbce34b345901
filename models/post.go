package models

import "time"

// Post is one scraped eToro discussion-feed entry. SourceHash deduplicates
// re-scraped content (hash of author + body).
type Post struct {
	ID         uint64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	SourceHash string     `json:"source_hash" gorm:"column:source_hash;type:char(40);not null;uniqueIndex"`
	Author     string     `json:"author" gorm:"column:author;type:varchar(64);not null;index"`
	Content    string     `json:"content" gorm:"column:content;type:text;not null"`
	Symbols    *string    `json:"symbols,omitempty" gorm:"column:symbols;type:varchar(255)"`
	PostedAt   *time.Time `json:"posted_at,omitempty" gorm:"column:posted_at"`
	ScrapedAt  time.Time  `json:"scraped_at" gorm:"column:scraped_at;autoCreateTime"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Post) TableName() string { return "posts" }
