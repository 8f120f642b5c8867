package platform_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/creatorpulse/discovery/internal/logger"
	"github.com/creatorpulse/discovery/internal/platform"
)

func instagramServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/hashtag/medias", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "fitness" {
			t.Errorf("name = %q, want keyword query", r.URL.Query().Get("name"))
		}
		_, _ = w.Write([]byte(`{
			"items": [
				{
					"shortcode": "Cx1",
					"caption": "leg day",
					"like_count": 44,
					"comment_count": 3,
					"video_view_count": 500,
					"taken_at": "2024-05-01T10:00:00Z",
					"owner": {
						"pk": 900,
						"id": 12345,
						"username": "bob",
						"full_name": "Bob B",
						"profile_pic_url": "https://cdn.example/bob.jpg"
					}
				}
			],
			"page_info": {"end_cursor": "QVFC", "has_next_page": true}
		}`))
	})
	mux.HandleFunc("/v1/users/bob/info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"user": {
				"biography": "lifting things",
				"external_url": "https://bob.example",
				"public_email": "bob@example.com",
				"follower_count": 4200
			}
		}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestInstagramSearchMapsRecords(t *testing.T) {
	server := instagramServer(t)
	adapter := platform.NewInstagram(platform.Config{
		BaseURL:      server.URL,
		APIKey:       "test-key",
		RateLimitRPS: testRateLimit,
	}, logger.NewNop())

	page, err := adapter.Search(context.Background(), platform.SearchParams{
		Keywords: []string{"fitness"},
	}, nil)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	if len(page.Records) != 1 {
		t.Fatalf("Search() returned %d records, want 1", len(page.Records))
	}
	rec := page.Records[0]
	if rec.Platform != platform.PlatformInstagram {
		t.Errorf("Platform = %q", rec.Platform)
	}
	if rec.CreatorID != "900" || rec.Handle != "bob" || rec.DisplayName != "Bob B" {
		t.Errorf("identity mismatch: %+v", rec)
	}
	if rec.ProfileURL != "https://www.instagram.com/bob" {
		t.Errorf("ProfileURL = %q", rec.ProfileURL)
	}
	if rec.Content.URL != "https://www.instagram.com/p/Cx1" {
		t.Errorf("Content.URL = %q", rec.Content.URL)
	}
	if rec.Content.Views != 500 || rec.Content.Likes != 44 {
		t.Errorf("engagement mismatch: %+v", rec.Content)
	}

	// The legacy numeric id differs from pk, so it rides along as an alias.
	if len(rec.AltIDs) != 1 || rec.AltIDs[0] != "12345" {
		t.Errorf("AltIDs = %v, want legacy id", rec.AltIDs)
	}

	if rec.Bio != "lifting things" || rec.Followers != 4200 {
		t.Errorf("enrichment mismatch: bio=%q followers=%d", rec.Bio, rec.Followers)
	}
	if len(rec.Contacts) != 2 {
		t.Errorf("Contacts = %v, want external url and email", rec.Contacts)
	}

	if page.NextCursor == nil || *page.NextCursor != "QVFC" {
		t.Errorf("NextCursor = %v, want QVFC", page.NextCursor)
	}
}

func TestInstagramSearchLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("after"); got != "QVFC" {
			t.Errorf("after = %q, want forwarded cursor", got)
		}
		_, _ = w.Write([]byte(`{"items": [], "page_info": {"end_cursor": "", "has_next_page": false}}`))
	}))
	t.Cleanup(server.Close)

	adapter := platform.NewInstagram(platform.Config{
		BaseURL:      server.URL,
		RateLimitRPS: testRateLimit,
	}, logger.NewNop())

	cursor := "QVFC"
	page, err := adapter.Search(context.Background(), platform.SearchParams{
		Keywords: []string{"fitness"},
	}, &cursor)
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(page.Records) != 0 || page.NextCursor != nil {
		t.Errorf("page = %+v, want empty terminal page", page)
	}
}

func TestInstagramSearchTargetHandleUsesSimilarEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"items": [], "page_info": {"end_cursor": "", "has_next_page": false}}`))
	}))
	t.Cleanup(server.Close)

	adapter := platform.NewInstagram(platform.Config{
		BaseURL:      server.URL,
		RateLimitRPS: testRateLimit,
	}, logger.NewNop())

	if _, err := adapter.Search(context.Background(), platform.SearchParams{
		TargetHandle: "bob",
	}, nil); err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if gotPath != "/v1/users/bob/similar" {
		t.Errorf("path = %q, want similar-accounts surface", gotPath)
	}
}

func TestInstagramSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	adapter := platform.NewInstagram(platform.Config{
		BaseURL:      server.URL,
		RateLimitRPS: testRateLimit,
	}, logger.NewNop())

	_, err := adapter.Search(context.Background(), platform.SearchParams{
		Keywords: []string{"fitness"},
	}, nil)
	if !errors.Is(err, platform.ErrUpstream) {
		t.Fatalf("Search() error = %v, want ErrUpstream", err)
	}
}
