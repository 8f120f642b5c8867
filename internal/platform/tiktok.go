package platform

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
)

const tiktokKeyHeader = "X-API-KEY"

// TikTok searches the provider's video-search endpoint and maps each video's
// author into a canonical creator record. Pagination is cursor-style: the
// upstream returns an opaque numeric cursor plus a has_more flag.
type TikTok struct {
	client *apiClient
	cfg    Config
	logger logger.Logger
}

// NewTikTok creates the TikTok adapter.
func NewTikTok(cfg Config, log logger.Logger) *TikTok {
	cfg = cfg.withDefaults()
	return &TikTok{
		client: newAPIClient(cfg, tiktokKeyHeader),
		cfg:    cfg,
		logger: log,
	}
}

// Name implements Adapter.
func (t *TikTok) Name() string { return PlatformTikTok }

// tiktokSearchResponse is the provider's video search payload. Only the
// fields the mapper consumes are declared.
type tiktokSearchResponse struct {
	Items   []tiktokItem `json:"item_list"`
	HasMore bool         `json:"has_more"`
	Cursor  json.Number  `json:"cursor"`
}

type tiktokItem struct {
	ID         string       `json:"id"`
	Desc       string       `json:"desc"`
	CreateTime int64        `json:"create_time"`
	Author     tiktokAuthor `json:"author"`
	Stats      tiktokStats  `json:"stats"`
}

type tiktokAuthor struct {
	ID          string `json:"id"`
	SecUID      string `json:"sec_uid"`
	UniqueID    string `json:"unique_id"`
	Nickname    string `json:"nickname"`
	AvatarThumb string `json:"avatar_thumb"`
	Signature   string `json:"signature"`
}

type tiktokStats struct {
	PlayCount    int64 `json:"play_count"`
	DiggCount    int64 `json:"digg_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
}

// tiktokUserInfo is the secondary profile payload used for enrichment.
type tiktokUserInfo struct {
	User struct {
		Signature string `json:"signature"`
		BioLink   struct {
			Link string `json:"link"`
		} `json:"bio_link"`
	} `json:"user"`
	Stats struct {
		FollowerCount int64 `json:"follower_count"`
	} `json:"stats"`
}

// Search implements Adapter. Keyword jobs hit the video search endpoint;
// target-handle jobs page through the handle's posts so "similar to @x"
// campaigns reuse the same pipeline.
func (t *TikTok) Search(ctx context.Context, params SearchParams, cursor *string) (*Page, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("count", strconv.Itoa(params.PerPageOr(t.cfg.PageSize)))
	if cursor != nil && *cursor != "" {
		query.Set("cursor", *cursor)
	}

	path := "/search/videos"
	if params.TargetHandle != "" {
		path = "/user/posts"
		query.Set("unique_id", params.TargetHandle)
	} else {
		query.Set("keyword", params.Query())
	}

	var resp tiktokSearchResponse
	if err := t.client.getJSON(ctx, path, query, &resp); err != nil {
		return nil, err
	}

	records := make([]domain.CreatorRecord, 0, len(resp.Items))
	for i := range resp.Items {
		records = append(records, t.mapItem(&resp.Items[i], params.Keywords))
	}

	t.enrich(ctx, records)

	page := &Page{Records: records}
	if resp.HasMore && resp.Cursor.String() != "" {
		next := resp.Cursor.String()
		page.NextCursor = &next
	}
	return page, nil
}

func (t *TikTok) mapItem(item *tiktokItem, keywords []string) domain.CreatorRecord {
	profileURL := ""
	contentURL := ""
	if item.Author.UniqueID != "" {
		profileURL = "https://www.tiktok.com/@" + item.Author.UniqueID
		if item.ID != "" {
			contentURL = profileURL + "/video/" + item.ID
		}
	}

	var altIDs []string
	if item.Author.SecUID != "" {
		altIDs = append(altIDs, item.Author.SecUID)
	}

	var postedAt string
	if item.CreateTime > 0 {
		postedAt = time.Unix(item.CreateTime, 0).UTC().Format(time.RFC3339)
	}

	return domain.CreatorRecord{
		Platform:    PlatformTikTok,
		CreatorID:   item.Author.ID,
		Handle:      item.Author.UniqueID,
		DisplayName: item.Author.Nickname,
		AvatarURL:   item.Author.AvatarThumb,
		ProfileURL:  profileURL,
		Bio:         item.Author.Signature,
		AltIDs:      altIDs,
		Keywords:    keywords,
		Content: domain.ContentItem{
			ID:       item.ID,
			URL:      contentURL,
			Caption:  item.Desc,
			Views:    item.Stats.PlayCount,
			Likes:    item.Stats.DiggCount,
			Comments: item.Stats.CommentCount,
			Shares:   item.Stats.ShareCount,
			PostedAt: postedAt,
		},
	}
}

// enrich fetches extended profiles for bio links and follower counts with
// bounded concurrency.
func (t *TikTok) enrich(ctx context.Context, records []domain.CreatorRecord) {
	enrichRecords(ctx, records, t.cfg.EnrichmentFanout, t.logger,
		func(ctx context.Context, rec *domain.CreatorRecord) error {
			if rec.CreatorID == "" {
				return nil
			}
			query := url.Values{}
			query.Set("user_id", rec.CreatorID)

			var info tiktokUserInfo
			if err := t.client.getJSON(ctx, "/user/info", query, &info); err != nil {
				return err
			}

			if info.User.Signature != "" {
				rec.Bio = info.User.Signature
			}
			if link := info.User.BioLink.Link; link != "" {
				rec.Contacts = append(rec.Contacts, link)
			}
			if info.Stats.FollowerCount > 0 {
				rec.Followers = info.Stats.FollowerCount
			}
			return nil
		})
}
