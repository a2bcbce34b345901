package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"market-compass-api/config"
	"market-compass-api/models"
	"market-compass-api/utils"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound      = errors.New("analysis report not found")
	ErrInvalidReviewAction = errors.New("invalid review transition")
)

const reportSystemPrompt = `You are an investment analyst writing an internal research note about an eToro copy trader.
Write concise markdown with sections for strategy, portfolio concentration, risk, and a recommendation.
Base every statement on the data provided. Do not invent figures.`

// completionClient is the slice of the LLM API the service needs.
type completionClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// anthropicCompleter wraps the Anthropic messages API.
type anthropicCompleter struct {
	client *anthropic.Client
	model  anthropic.Model
}

func newAnthropicCompleter() *anthropicCompleter {
	client := anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))
	model := anthropic.Model(os.Getenv("ANTHROPIC_MODEL"))
	if model == "" {
		model = anthropic.Model("claude-sonnet-4-5")
	}
	return &anthropicCompleter{client: &client, model: model}
}

func (c *anthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("no response from anthropic")
	}
	return resp.Content[0].Text, nil
}

// ReportService generates LLM-written trader analyses and runs the
// Investment Committee review workflow over them.
type ReportService struct {
	db        *gorm.DB
	llm       completionClient
	modelName string
}

func NewReportService(db *gorm.DB, llm completionClient) *ReportService {
	if db == nil {
		db = config.DB
	}
	modelName := os.Getenv("ANTHROPIC_MODEL")
	if modelName == "" {
		modelName = string(anthropic.Model("claude-sonnet-4-5"))
	}
	if llm == nil {
		llm = newAnthropicCompleter()
	}
	return &ReportService{db: db, llm: llm, modelName: modelName}
}

// Generate writes a new analysis report for one trader and stores it as
// pending committee review. The LLM call is synchronous.
func (s *ReportService) Generate(ctx context.Context, traderID uint64) (*models.AnalysisReport, error) {
	var trader models.Trader
	if err := s.db.WithContext(ctx).Preload("Portfolio").
		Where("id = ?", traderID).First(&trader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trader %d not found", traderID)
		}
		return nil, err
	}

	var posts []models.Post
	if err := s.db.WithContext(ctx).
		Where("author = ?", trader.Username).
		Order("scraped_at DESC").
		Limit(10).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Analysis: %s", displayName(&trader))
	raw, err := s.llm.Complete(ctx, reportSystemPrompt, buildReportPrompt(&trader, posts))
	if err != nil {
		return nil, err
	}

	report := &models.AnalysisReport{
		ID:        uuid.NewString(),
		TraderID:  trader.ID,
		Title:     title,
		Content:   utils.CleanMarkdown(raw, title),
		ModelUsed: s.modelName,
		Status:    models.ReportStatusPendingReview,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

// Review applies a committee decision. Allowed transitions:
// pending_review -> approved/rejected, and rejected -> approved on
// re-review. Anything else returns ErrInvalidReviewAction.
func (s *ReportService) Review(ctx context.Context, reportID, reviewedBy, decision, note string) (*models.AnalysisReport, error) {
	var target string
	var fromStatuses []string
	switch decision {
	case models.ReportDecisionApprove:
		target = models.ReportStatusApproved
		fromStatuses = []string{models.ReportStatusPendingReview, models.ReportStatusRejected}
	case models.ReportDecisionReject:
		target = models.ReportStatusRejected
		fromStatuses = []string{models.ReportStatusPendingReview}
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidReviewAction, decision)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      target,
		"reviewed_by": reviewedBy,
		"reviewed_at": now,
	}
	if note = strings.TrimSpace(note); note != "" {
		updates["review_note"] = note
	}

	res := s.db.WithContext(ctx).Model(&models.AnalysisReport{}).
		Where("id = ? AND status IN ?", reportID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish missing report from a bad transition.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.AnalysisReport{}).
			Where("id = ?", reportID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrReportNotFound
		}
		return nil, ErrInvalidReviewAction
	}

	var report models.AnalysisReport
	if err := s.db.WithContext(ctx).Where("id = ?", reportID).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports newest first, optionally filtered by status.
func (s *ReportService) List(ctx context.Context, status string, limit int) ([]models.AnalysisReport, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Model(&models.AnalysisReport{}).
		Preload("Trader").
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var reports []models.AnalysisReport
	if err := query.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Get loads one report.
func (s *ReportService) Get(ctx context.Context, reportID string) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	if err := s.db.WithContext(ctx).Preload("Trader").
		Where("id = ?", reportID).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func buildReportPrompt(trader *models.Trader, posts []models.Post) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trader: %s (@%s)\n", displayName(trader), trader.Username)
	if trader.RiskScore != nil {
		fmt.Fprintf(&b, "Risk score: %d/10\n", *trader.RiskScore)
	}
	if trader.Copiers != nil {
		fmt.Fprintf(&b, "Copiers: %d\n", *trader.Copiers)
	}
	if trader.GainYTD != nil {
		fmt.Fprintf(&b, "Gain YTD: %.2f%%\n", *trader.GainYTD)
	}
	if trader.Gain12M != nil {
		fmt.Fprintf(&b, "Gain 12M: %.2f%%\n", *trader.Gain12M)
	}
	if trader.WinRatio != nil {
		fmt.Fprintf(&b, "Win ratio: %.1f%%\n", *trader.WinRatio)
	}

	if len(trader.Portfolio) > 0 {
		b.WriteString("\nPortfolio:\n")
		for _, item := range trader.Portfolio {
			fmt.Fprintf(&b, "- %s %s %.2f%%", item.Symbol, item.Direction, item.InvestedPct)
			if item.ProfitPct != nil {
				fmt.Fprintf(&b, " (P/L %.2f%%)", *item.ProfitPct)
			}
			b.WriteString("\n")
		}
	}

	if len(posts) > 0 {
		b.WriteString("\nRecent posts by this trader:\n")
		for _, post := range posts {
			content := post.Content
			if len(content) > 280 {
				content = content[:280] + "…"
			}
			fmt.Fprintf(&b, "- %s\n", content)
		}
	}

	return b.String()
}

func displayName(trader *models.Trader) string {
	if trader.DisplayName != nil && *trader.DisplayName != "" {
		return *trader.DisplayName
	}
	return trader.Username
}
