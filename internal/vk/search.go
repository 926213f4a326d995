package vk

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/love-machine/internal/models"
)

const (
	// Max value for search per page.
	perPage = 200
	// users.search never returns more than 1000 results.
	maxResults = 1000
	// Only profiles with status "single" or "actively searching".
	statusSingle = 1
)

type SearchParams struct {
	// vkparam is custom tag for reflect. Please see buildParams.
	City     int      `vkparam:"city"`
	Sex      int      `vkparam:"sex"`
	AgeFrom  int      `vkparam:"age_from"`
	AgeTo    int      `vkparam:"age_to"`
	Status   int      `vkparam:"status"`
	HasPhoto int      `vkparam:"has_photo"`
	Fields   []string `vkparam:"fields"`
	Count    int      `vkparam:"count"`
	Offset   int      `vkparam:"offset"`
}

// SearchParamsFor converts criteria into users.search parameters. A zero city
// is left out so the search is not constrained by it.
func SearchParamsFor(criteria *models.Criteria) *SearchParams {
	return &SearchParams{
		City:     criteria.CityID,
		Sex:      int(criteria.Gender),
		AgeFrom:  criteria.AgeFrom,
		AgeTo:    criteria.AgeTo,
		Status:   statusSingle,
		HasPhoto: 1,
		Fields:   profileFields,
	}
}

type itemResponse struct {
	Count int              `json:"count"`
	Items []map[string]any `json:"items"`
}

// Search runs users.search for the criteria and returns up to limit profiles.
// A non-positive limit means the API maximum.
func (c *Client) Search(ctx context.Context, criteria *models.Criteria, limit int) (*models.Profiles, error) {
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}

	params := SearchParamsFor(criteria)
	params.Count = min(perPage, limit)

	var users []*User
	for {
		var response itemResponse
		if err := c.call(ctx, "users.search", c.userToken, buildParams(params), &response); err != nil {
			return nil, err
		}

		page, err := decodeUsers(response.Items)
		if err != nil {
			return nil, err
		}
		users = append(users, page...)

		c.logger.Debug("got search page from VK",
			zap.Int("found", response.Count),
			zap.Int("offset", params.Offset),
			zap.Int("items", len(page)),
		)

		params.Offset += len(response.Items)
		if len(response.Items) < params.Count || params.Offset >= response.Count || params.Offset >= limit {
			break
		}
	}

	if len(users) > limit {
		users = users[:limit]
	}

	profiles := &models.Profiles{Items: make([]*models.Profile, 0, len(users))}
	for _, u := range users {
		profiles.Items = append(profiles.Items, u.Profile())
	}

	return profiles, nil
}

func decodeUsers(items []map[string]any) ([]*User, error) {
	var users []*User

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &users,
		TagName:  "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	return users, nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("vkparam")
		if key == "" {
			continue
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case []string:
			if len(v) > 0 {
				q.Set(key, strings.Join(v, ","))
			}
		case int:
			if v != 0 {
				q.Set(key, strconv.Itoa(v))
			}
		default:
			if s := fmt.Sprintf("%v", v); s != "" {
				q.Set(key, s)
			}
		}
	}

	return q
}
