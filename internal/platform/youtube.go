package platform

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
)

// youtubeEnrichBatchSize is the channels-endpoint id limit per request.
const youtubeEnrichBatchSize = 50

// YouTube searches the Data-API-compatible video search endpoint and maps
// each video's channel into a canonical creator record. Pagination is
// token-style (nextPageToken). Unlike the other adapters, enrichment is a
// batched channels lookup rather than per-record fan-out, because the
// upstream accepts up to 50 ids per call.
type YouTube struct {
	client *apiClient
	cfg    Config
	logger logger.Logger
}

// NewYouTube creates the YouTube adapter. The API key travels as a query
// parameter, not a header, matching the upstream convention.
func NewYouTube(cfg Config, log logger.Logger) *YouTube {
	cfg = cfg.withDefaults()
	return &YouTube{
		client: newAPIClient(cfg, ""),
		cfg:    cfg,
		logger: log,
	}
}

// Name implements Adapter.
func (y *YouTube) Name() string { return PlatformYouTube }

type youtubeSearchResponse struct {
	NextPageToken string              `json:"nextPageToken"`
	Items         []youtubeSearchItem `json:"items"`
}

type youtubeSearchItem struct {
	ID struct {
		VideoID   string `json:"videoId"`
		ChannelID string `json:"channelId"`
	} `json:"id"`
	Snippet youtubeSnippet `json:"snippet"`
}

type youtubeSnippet struct {
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   struct {
		Default struct {
			URL string `json:"url"`
		} `json:"default"`
	} `json:"thumbnails"`
}

type youtubeChannelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Description string `json:"description"`
			CustomURL   string `json:"customUrl"`
			Thumbnails  struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			ViewCount       string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Search implements Adapter.
func (y *YouTube) Search(ctx context.Context, params SearchParams, cursor *string) (*Page, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("maxResults", strconv.Itoa(params.PerPageOr(y.cfg.PageSize)))
	query.Set("key", y.cfg.APIKey)
	if cursor != nil && *cursor != "" {
		query.Set("pageToken", *cursor)
	}
	if params.TargetHandle != "" {
		query.Set("type", "channel")
		query.Set("q", strings.TrimPrefix(params.TargetHandle, "@"))
	} else {
		query.Set("type", "video")
		query.Set("q", params.Query())
	}

	var resp youtubeSearchResponse
	if err := y.client.getJSON(ctx, "/search", query, &resp); err != nil {
		return nil, err
	}

	records := make([]domain.CreatorRecord, 0, len(resp.Items))
	for i := range resp.Items {
		rec := y.mapItem(&resp.Items[i], params.Keywords)
		if rec.CreatorID == "" {
			continue
		}
		records = append(records, rec)
	}

	y.enrich(ctx, records)

	page := &Page{Records: records}
	if resp.NextPageToken != "" {
		next := resp.NextPageToken
		page.NextCursor = &next
	}
	return page, nil
}

func (y *YouTube) mapItem(item *youtubeSearchItem, keywords []string) domain.CreatorRecord {
	channelID := item.Snippet.ChannelID
	if channelID == "" {
		channelID = item.ID.ChannelID
	}

	profileURL := ""
	if channelID != "" {
		profileURL = "https://www.youtube.com/channel/" + channelID
	}
	contentURL := ""
	if item.ID.VideoID != "" {
		contentURL = "https://www.youtube.com/watch?v=" + item.ID.VideoID
	}

	return domain.CreatorRecord{
		Platform:    PlatformYouTube,
		CreatorID:   channelID,
		DisplayName: item.Snippet.ChannelTitle,
		AvatarURL:   item.Snippet.Thumbnails.Default.URL,
		ProfileURL:  profileURL,
		Keywords:    keywords,
		Content: domain.ContentItem{
			ID:       item.ID.VideoID,
			URL:      contentURL,
			Caption:  item.Snippet.Title,
			PostedAt: item.Snippet.PublishedAt,
		},
	}
}

// enrich resolves channel statistics and handles in batches of up to 50 ids.
func (y *YouTube) enrich(ctx context.Context, records []domain.CreatorRecord) {
	byID := make(map[string][]*domain.CreatorRecord, len(records))
	ids := make([]string, 0, len(records))
	for i := range records {
		id := records[i].CreatorID
		if id == "" {
			continue
		}
		if _, ok := byID[id]; !ok {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], &records[i])
	}

	for start := 0; start < len(ids); start += youtubeEnrichBatchSize {
		end := start + youtubeEnrichBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		query := url.Values{}
		query.Set("part", "snippet,statistics")
		query.Set("id", strings.Join(ids[start:end], ","))
		query.Set("key", y.cfg.APIKey)

		var resp youtubeChannelsResponse
		if err := y.client.getJSON(ctx, "/channels", query, &resp); err != nil {
			y.logger.Debug("channel enrichment skipped",
				logger.Int("batch_size", end-start),
				logger.Error(err),
			)
			continue
		}

		for _, ch := range resp.Items {
			subs, _ := strconv.ParseInt(ch.Statistics.SubscriberCount, 10, 64)
			for _, rec := range byID[ch.ID] {
				rec.Bio = ch.Snippet.Description
				rec.Followers = subs
				if ch.Snippet.CustomURL != "" {
					rec.Handle = strings.TrimPrefix(ch.Snippet.CustomURL, "@")
					rec.AltIDs = append(rec.AltIDs, ch.Snippet.CustomURL)
				}
				if rec.AvatarURL == "" {
					rec.AvatarURL = ch.Snippet.Thumbnails.Default.URL
				}
			}
		}
	}
}
