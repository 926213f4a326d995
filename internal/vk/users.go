package vk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spigell/love-machine/internal/models"
)

// profileFields are requested for every user object.
var profileFields = []string{"sex", "bdate", "city", "interests"}

type City struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// User is a VK user object restricted to the fields the bot reads.
type User struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Sex         int    `json:"sex"`
	BirthDate   string `json:"bdate"`
	City        *City  `json:"city"`
	Interests   string `json:"interests"`
	Deactivated string `json:"deactivated"`
	IsClosed    bool   `json:"is_closed"`
}

func (u *User) Profile() *models.Profile {
	p := &models.Profile{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Gender:      models.Gender(u.Sex),
		BirthDate:   u.BirthDate,
		Interests:   u.Interests,
		Deactivated: u.Deactivated,
		IsClosed:    u.IsClosed,
	}
	if u.City != nil {
		p.CityID = u.City.ID
		p.CityTitle = u.City.Title
	}
	return p
}

// GetProfile returns the profile of a user by id. Deleted and banned users are
// returned with Deactivated set.
func (c *Client) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	q := url.Values{}
	q.Set("user_ids", strconv.FormatInt(userID, 10))
	q.Set("fields", strings.Join(profileFields, ","))

	var users []*User
	if err := c.call(ctx, "users.get", c.groupToken, q, &users); err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("users.get: user %d not found", userID)
	}

	return users[0].Profile(), nil
}
