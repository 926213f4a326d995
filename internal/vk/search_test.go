package vk

import (
	"context"
	"strconv"
	"testing"

	"github.com/spigell/love-machine/internal/models"
)

func TestBuildParams(t *testing.T) {
	q := buildParams(&SearchParams{
		Sex:     1,
		AgeFrom: 22,
		AgeTo:   38,
		Fields:  []string{"sex", "bdate"},
		Count:   200,
	})

	want := map[string]string{
		"sex":      "1",
		"age_from": "22",
		"age_to":   "38",
		"fields":   "sex,bdate",
		"count":    "200",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("param %s = %q, want %q", k, q.Get(k), v)
		}
	}

	for _, k := range []string{"city", "offset", "status"} {
		if q.Has(k) {
			t.Fatalf("zero param %s must be omitted", k)
		}
	}
}

func TestSearchPaginates(t *testing.T) {
	api, client := newFakeAPI(t)

	const total = 250
	api.handle("users.search", func(form map[string]string) any {
		offset, _ := strconv.Atoi(form["offset"])
		count, _ := strconv.Atoi(form["count"])

		items := make([]map[string]any, 0, count)
		for id := offset; id < min(offset+count, total); id++ {
			items = append(items, map[string]any{
				"id":         id + 1,
				"first_name": "User",
				"sex":        1,
				"bdate":      "1.1.1995",
				"city":       map[string]any{"id": 1, "title": "Москва"},
			})
		}
		return ok(map[string]any{"count": total, "items": items})
	})

	profiles, err := client.Search(context.Background(), &models.Criteria{CityID: 1, Gender: models.GenderFemale, AgeFrom: 22, AgeTo: 38}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profiles.Len() != total {
		t.Fatalf("expected %d profiles, got %d", total, profiles.Len())
	}
	if api.count("users.search") != 2 {
		t.Fatalf("expected 2 pages, got %d", api.count("users.search"))
	}

	first := profiles.Items[0]
	if first.ID != 1 || first.CityID != 1 || first.Gender != models.GenderFemale {
		t.Fatalf("unexpected first profile %#v", first)
	}

	form := api.lastForm("users.search")
	if form["access_token"] != "user" || form["city"] != "1" || form["sex"] != "1" || form["status"] != "1" {
		t.Fatalf("unexpected search form %v", form)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	api, client := newFakeAPI(t)
	api.handle("users.search", func(form map[string]string) any {
		items := []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}
		return ok(map[string]any{"count": 500, "items": items})
	})

	profiles, err := client.Search(context.Background(), &models.Criteria{Gender: models.GenderMale}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles.Len() != 3 || api.count("users.search") != 1 {
		t.Fatalf("expected a single page of 3, got %d profiles in %d calls", profiles.Len(), api.count("users.search"))
	}
	if form := api.lastForm("users.search"); form["city"] != "" {
		t.Fatalf("zero city must not constrain the search, got %q", form["city"])
	}
}
