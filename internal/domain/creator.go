package domain

import "strings"

// CreatorRecord is the canonical, platform-agnostic representation of one
// discovered creator. Every platform adapter maps its upstream payload into
// this envelope at the adapter boundary, so downstream components operate on
// a closed, typed shape.
type CreatorRecord struct {
	Platform    string   `json:"platform"`
	CreatorID   string   `json:"creator_id,omitempty"`
	Handle      string   `json:"handle,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	ProfileURL  string   `json:"profile_url,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Contacts    []string `json:"contacts,omitempty"`
	Followers   int64    `json:"followers,omitempty"`

	// AltIDs holds secondary identifiers the upstream exposes alongside the
	// primary id (legacy numeric ids, vanity slugs). They participate in
	// deduplication so a creator surfaced under a different identifier on a
	// later page is still caught.
	AltIDs []string `json:"alt_ids,omitempty"`

	// Content is the representative item that surfaced this creator.
	Content ContentItem `json:"content"`

	// Keywords records the originating search terms for attribution.
	Keywords []string `json:"keywords,omitempty"`
}

// ContentItem is one representative post with engagement statistics.
type ContentItem struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Views    int64  `json:"views,omitempty"`
	Likes    int64  `json:"likes,omitempty"`
	Comments int64  `json:"comments,omitempty"`
	Shares   int64  `json:"shares,omitempty"`
	PostedAt string `json:"posted_at,omitempty"`
}

// NormalizeKeywords trims, lowercases and deduplicates search keywords,
// preserving first-seen order. Empty entries are dropped.
func NormalizeKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
