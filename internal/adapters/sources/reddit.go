package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
)

const redditBaseURL = "https://www.reddit.com"

// Reddit pulls recent posts from the public subreddit listings.
type Reddit struct {
	client    *resty.Client
	userAgent string
	kinds     map[string]domain.ChannelKind
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewReddit creates the source. kinds maps a lowercased subreddit to its
// channel classification; unmapped subreddits stay unknown.
func NewReddit(userAgent string, kinds map[string]domain.ChannelKind) *Reddit {
	if userAgent == "" {
		userAgent = "newtrip-ingest/1.0"
	}
	return &Reddit{
		client:    resty.New().SetBaseURL(redditBaseURL).SetTimeout(30 * time.Second),
		userAgent: userAgent,
		kinds:     kinds,
	}
}

// Fetch returns the newest posts of one subreddit as mentions.
func (r *Reddit) Fetch(ctx context.Context, subreddit string, limit int) ([]domain.Mention, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	start := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent).
		SetQueryParams(map[string]string{"limit": fmt.Sprintf("%d", limit), "raw_json": "1"}).
		Get(fmt.Sprintf("/r/%s/new.json", subreddit))
	metrics.ObserveNetworkRequest("reddit", "listing_new", subreddit, start, err)
	if err != nil {
		return nil, fmt.Errorf("reddit listing: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit listing: status %d", resp.StatusCode())
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("reddit listing: decode: %w", err)
	}

	mentions := make([]domain.Mention, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		text := strings.TrimSpace(post.Title)
		if body := strings.TrimSpace(post.Selftext); body != "" {
			text = text + "\n" + body
		}
		if text == "" {
			continue
		}
		mentions = append(mentions, domain.Mention{
			SourceID:   "reddit:" + post.ID,
			Channel:    strings.ToLower(post.Subreddit),
			Kind:       r.channelKind(post.Subreddit),
			Text:       text,
			Author:     post.Author,
			PostedAt:   time.Unix(int64(post.Created), 0).UTC(),
			Engagement: post.Score + post.NumComments,
			Lang:       "fr",
		})
	}
	return mentions, nil
}

func (r *Reddit) channelKind(subreddit string) domain.ChannelKind {
	if kind, ok := r.kinds[strings.ToLower(subreddit)]; ok {
		return kind
	}
	return domain.ChannelUnknown
}

// KindMap builds the subreddit classification from comma-separated lists.
func KindMap(local, mainstream string) map[string]domain.ChannelKind {
	kinds := make(map[string]domain.ChannelKind)
	for _, name := range strings.Split(local, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			kinds[name] = domain.ChannelLocal
		}
	}
	for _, name := range strings.Split(mainstream, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			kinds[name] = domain.ChannelMainstream
		}
	}
	return kinds
}
