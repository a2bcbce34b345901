package firecrawl

import (
	"reflect"
	"testing"
	"time"
)

const sampleFeedHTML = `
<html><body>
  <div data-etoro-automation-id="post">
    <span data-etoro-automation-id="post-username"> JeppeKirkBonde </span>
    <time>3 hours ago</time>
    <div data-etoro-automation-id="post-content">
      Adding to $NVDA and $ASML.AS this week.
      Still long $NVDA.
    </div>
  </div>
  <article class="feed-post">
    <span class="user-name">Wesl3y</span>
    <span class="post-age">just now</span>
    <div class="post-text">Market looks frothy, raising cash.</div>
  </article>
  <div class="post-card">
    <span class="post-author"></span>
    <div class="post-body">Orphan card without an author is skipped.</div>
  </div>
</body></html>`

func TestParseFeedExtractsPosts(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	posts, err := ParseFeed(sampleFeedHTML, now)
	if err != nil {
		t.Fatalf("ParseFeed returned error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	first := posts[0]
	if first.Author != "JeppeKirkBonde" {
		t.Fatalf("unexpected author: %q", first.Author)
	}
	if !reflect.DeepEqual(first.Symbols, []string{"NVDA", "ASML.AS"}) {
		t.Fatalf("unexpected symbols: %v", first.Symbols)
	}
	if first.PostedAt == nil {
		t.Fatalf("expected parsed post age")
	}
	if want := now.Add(-3 * time.Hour); !first.PostedAt.Equal(want) {
		t.Fatalf("expected posted at %v, got %v", want, *first.PostedAt)
	}
	if first.SourceHash != HashPost(first.Author, first.Content) {
		t.Fatalf("source hash must be derived from author and content")
	}

	second := posts[1]
	if second.Author != "Wesl3y" {
		t.Fatalf("unexpected author: %q", second.Author)
	}
	if second.PostedAt != nil {
		t.Fatalf("unparseable age must yield nil, got %v", *second.PostedAt)
	}
	if second.Symbols != nil {
		t.Fatalf("expected no symbols, got %v", second.Symbols)
	}
}

func TestHashPostIsStableAndDistinct(t *testing.T) {
	a := HashPost("alice", "buying $TSLA")
	if a != HashPost("alice", "buying $TSLA") {
		t.Fatalf("hash must be deterministic")
	}
	if a == HashPost("bob", "buying $TSLA") {
		t.Fatalf("different authors must hash differently")
	}
	// The separator keeps author/content boundaries from colliding.
	if HashPost("ab", "c") == HashPost("a", "bc") {
		t.Fatalf("author/content boundary must be part of the hash")
	}
}

func TestParseRelativeAge(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		label string
		want  *time.Time
	}{
		{"5 minutes ago", timePtr(now.Add(-5 * time.Minute))},
		{"1 hour ago", timePtr(now.Add(-time.Hour))},
		{"2 days ago", timePtr(now.Add(-48 * time.Hour))},
		{"1 week ago", timePtr(now.Add(-7 * 24 * time.Hour))},
		{"yesterday", nil},
		{"", nil},
	}

	for _, tc := range cases {
		got := parseRelativeAge(tc.label, now)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("parseRelativeAge(%q) = %v, want nil", tc.label, *got)
		case tc.want != nil && (got == nil || !got.Equal(*tc.want)):
			t.Errorf("parseRelativeAge(%q) = %v, want %v", tc.label, got, *tc.want)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }
