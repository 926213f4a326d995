package vk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spigell/love-machine/internal/models"
)

type photoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type counter struct {
	Count int `json:"count"`
}

type photo struct {
	ID       int64       `json:"id"`
	OwnerID  int64       `json:"owner_id"`
	Likes    counter     `json:"likes"`
	Comments counter     `json:"comments"`
	Sizes    []photoSize `json:"sizes"`
}

func (p *photo) ref() string {
	return fmt.Sprintf("photo%d_%d", p.OwnerID, p.ID)
}

func (p *photo) largest() string {
	best := photoSize{}
	for _, s := range p.Sizes {
		if s.Width*s.Height >= best.Width*best.Height {
			best = s
		}
	}
	return best.URL
}

type photosResponse struct {
	Count int     `json:"count"`
	Items []photo `json:"items"`
}

// FetchMedia returns the profile photos of a user with popularity computed as
// likes plus comments. Photos are deduplicated by reference. Private profiles
// yield an error matching models.ErrAccessDenied.
func (c *Client) FetchMedia(ctx context.Context, ownerID int64) ([]models.Media, error) {
	q := url.Values{}
	q.Set("owner_id", strconv.FormatInt(ownerID, 10))
	q.Set("album_id", "profile")
	q.Set("extended", "1")
	q.Set("photo_sizes", "1")
	q.Set("count", "1000")

	var response photosResponse
	if err := c.call(ctx, "photos.get", c.userToken, q, &response); err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(response.Items))
	media := make([]models.Media, 0, len(response.Items))
	for i := range response.Items {
		p := &response.Items[i]
		m := models.Media{
			Ref:        p.ref(),
			URL:        p.largest(),
			Popularity: p.Likes.Count + p.Comments.Count,
		}

		if idx, ok := seen[m.Ref]; ok {
			if media[idx].Popularity < m.Popularity {
				media[idx] = m
			}
			continue
		}
		seen[m.Ref] = len(media)
		media = append(media, m)
	}

	return media, nil
}
