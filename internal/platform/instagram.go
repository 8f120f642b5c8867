package platform

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
)

const instagramKeyHeader = "X-API-KEY"

// Instagram searches the provider's hashtag-media endpoint. Instagram has no
// first-party keyword API, so the provider fronts a SERP-style scrape; its
// pagination is GraphQL page_info (end_cursor plus has_next_page).
type Instagram struct {
	client *apiClient
	cfg    Config
	logger logger.Logger
}

// NewInstagram creates the Instagram adapter.
func NewInstagram(cfg Config, log logger.Logger) *Instagram {
	cfg = cfg.withDefaults()
	return &Instagram{
		client: newAPIClient(cfg, instagramKeyHeader),
		cfg:    cfg,
		logger: log,
	}
}

// Name implements Adapter.
func (i *Instagram) Name() string { return PlatformInstagram }

type instagramMediaResponse struct {
	Items    []instagramMedia `json:"items"`
	PageInfo struct {
		EndCursor   string `json:"end_cursor"`
		HasNextPage bool   `json:"has_next_page"`
	} `json:"page_info"`
}

type instagramMedia struct {
	Shortcode     string         `json:"shortcode"`
	Caption       string         `json:"caption"`
	LikeCount     int64          `json:"like_count"`
	CommentCount  int64          `json:"comment_count"`
	VideoViewsRaw json.Number    `json:"video_view_count"`
	TakenAt       string         `json:"taken_at"`
	Owner         instagramOwner `json:"owner"`
}

// instagramOwner carries both the modern string pk and the legacy numeric
// id; either may be present depending on which upstream surface served the
// page.
type instagramOwner struct {
	PK            json.Number `json:"pk"`
	LegacyID      json.Number `json:"id"`
	Username      string      `json:"username"`
	FullName      string      `json:"full_name"`
	ProfilePicURL string      `json:"profile_pic_url"`
}

type instagramUserInfo struct {
	User struct {
		Biography     string `json:"biography"`
		ExternalURL   string `json:"external_url"`
		PublicEmail   string `json:"public_email"`
		FollowerCount int64  `json:"follower_count"`
	} `json:"user"`
}

// Search implements Adapter. Keyword jobs page hashtag media; target-handle
// jobs page the provider's similar-accounts surface.
func (i *Instagram) Search(ctx context.Context, params SearchParams, cursor *string) (*Page, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("count", strconv.Itoa(params.PerPageOr(i.cfg.PageSize)))
	if cursor != nil && *cursor != "" {
		query.Set("after", *cursor)
	}

	path := "/v1/hashtag/medias"
	if params.TargetHandle != "" {
		path = "/v1/users/" + url.PathEscape(params.TargetHandle) + "/similar"
	} else {
		query.Set("name", params.Query())
	}

	var resp instagramMediaResponse
	if err := i.client.getJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	records := make([]domain.CreatorRecord, 0, len(resp.Items))
	for idx := range resp.Items {
		records = append(records, i.mapMedia(&resp.Items[idx], params.Keywords))
	}

	i.enrich(ctx, records)

	page := &Page{Records: records}
	if resp.PageInfo.HasNextPage && resp.PageInfo.EndCursor != "" {
		next := resp.PageInfo.EndCursor
		page.NextCursor = &next
	}
	return page, nil
}

func (i *Instagram) mapMedia(media *instagramMedia, keywords []string) domain.CreatorRecord {
	profileURL := ""
	if media.Owner.Username != "" {
		profileURL = "https://www.instagram.com/" + media.Owner.Username
	}
	contentURL := ""
	if media.Shortcode != "" {
		contentURL = "https://www.instagram.com/p/" + media.Shortcode
	}

	var altIDs []string
	if legacy := media.Owner.LegacyID.String(); legacy != "" && legacy != media.Owner.PK.String() {
		altIDs = append(altIDs, legacy)
	}

	var views int64
	if v, err := media.VideoViewsRaw.Int64(); err == nil {
		views = v
	}

	return domain.CreatorRecord{
		Platform:    PlatformInstagram,
		CreatorID:   media.Owner.PK.String(),
		Handle:      media.Owner.Username,
		DisplayName: media.Owner.FullName,
		AvatarURL:   media.Owner.ProfilePicURL,
		ProfileURL:  profileURL,
		AltIDs:      altIDs,
		Keywords:    keywords,
		Content: domain.ContentItem{
			ID:       media.Shortcode,
			URL:      contentURL,
			Caption:  media.Caption,
			Views:    views,
			Likes:    media.LikeCount,
			Comments: media.CommentCount,
			PostedAt: media.TakenAt,
		},
	}
}

func (i *Instagram) enrich(ctx context.Context, records []domain.CreatorRecord) {
	enrichRecords(ctx, records, i.cfg.EnrichmentFanout, i.logger,
		func(ctx context.Context, rec *domain.CreatorRecord) error {
			if rec.Handle == "" {
				return nil
			}

			var info instagramUserInfo
			path := "/v1/users/" + url.PathEscape(rec.Handle) + "/info"
			if err := i.client.getJSON(ctx, path, nil, &info); err != nil {
				return err
			}

			rec.Bio = info.User.Biography
			if info.User.ExternalURL != "" {
				rec.Contacts = append(rec.Contacts, info.User.ExternalURL)
			}
			if info.User.PublicEmail != "" {
				rec.Contacts = append(rec.Contacts, info.User.PublicEmail)
			}
			if info.User.FollowerCount > 0 {
				rec.Followers = info.User.FollowerCount
			}
			return nil
		})
}
