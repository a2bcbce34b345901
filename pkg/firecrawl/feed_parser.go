package firecrawl

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FeedPost is one discussion post extracted from a scraped eToro feed page.
type FeedPost struct {
	Author     string
	Content    string
	Symbols    []string
	PostedAt   *time.Time
	SourceHash string
}

var (
	cashtagPattern      = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9.]{0,15})`)
	relativeAgePattern  = regexp.MustCompile(`(?i)^(\d+)\s*(minute|hour|day|week)s?\s+ago$`)
	whitespaceCollapser = regexp.MustCompile(`\s+`)
)

// ParseFeed extracts discussion posts from rendered feed HTML. The page
// structure is not a stable API, so selectors are deliberately loose: any
// element marked as a post card with a recognizable author line counts.
func ParseFeed(html string, now time.Time) ([]FeedPost, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var posts []FeedPost
	doc.Find("[data-etoro-automation-id='post'], article.feed-post, div.post-card").Each(func(_ int, card *goquery.Selection) {
		author := cleanText(card.Find("[data-etoro-automation-id='post-username'], .user-name, .post-author").First().Text())
		content := cleanText(card.Find("[data-etoro-automation-id='post-content'], .post-text, .post-body").First().Text())
		if author == "" || content == "" {
			return
		}

		post := FeedPost{
			Author:     author,
			Content:    content,
			Symbols:    extractSymbols(content),
			PostedAt:   parseRelativeAge(cleanText(card.Find("time, .post-age").First().Text()), now),
			SourceHash: HashPost(author, content),
		}
		posts = append(posts, post)
	})

	return posts, nil
}

// HashPost is the dedup identity for a scraped post.
func HashPost(author, content string) string {
	sum := sha1.Sum([]byte(author + "\x00" + content))
	return hex.EncodeToString(sum[:])
}

func extractSymbols(content string) []string {
	matches := cashtagPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var symbols []string
	for _, m := range matches {
		// A cashtag at sentence end drags the period along.
		sym := strings.ToUpper(strings.TrimRight(m[1], "."))
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	return symbols
}

// parseRelativeAge converts "3 hours ago" style labels into absolute times.
// Anything unparseable yields nil; the scrape timestamp still orders posts.
func parseRelativeAge(label string, now time.Time) *time.Time {
	m := relativeAgePattern.FindStringSubmatch(label)
	if m == nil {
		return nil
	}

	n := 0
	for _, ch := range m[1] {
		n = n*10 + int(ch-'0')
	}

	var d time.Duration
	switch strings.ToLower(m[2]) {
	case "minute":
		d = time.Duration(n) * time.Minute
	case "hour":
		d = time.Duration(n) * time.Hour
	case "day":
		d = time.Duration(n) * 24 * time.Hour
	case "week":
		d = time.Duration(n) * 7 * 24 * time.Hour
	}

	ts := now.Add(-d)
	return &ts
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceCollapser.ReplaceAllString(s, " "))
}
