package twitter

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Token is a long-lived credential: either an access key/secret pair or a
// bearer string. The two forms are mutually exclusive.
type Token struct {
	Key    string
	Secret string
	Bearer string
}

// IsBearer reports whether the token is an app-only bearer token.
func (t Token) IsBearer() bool {
	return t.Bearer != "" && t.Key == "" && t.Secret == ""
}

// Valid reports whether the token carries a usable credential.
func (t Token) Valid() bool {
	return (t.Key != "" && t.Secret != "") || t.Bearer != ""
}

// Grant is the temporary request token issued before user consent. ID is a
// local attempt identifier, not part of the protocol.
type Grant struct {
	ID     uuid.UUID
	Token  string
	Secret string
}

// Identity describes the authenticated account.
type Identity struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// User is the author embedded in a tweet.
type User struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name"`
	ScreenName           string `json:"screen_name"`
	Description          string `json:"description"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
}

// MediaSize is one rendition size of a media entity.
type MediaSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Media is a photo attached to a tweet.
type Media struct {
	ID            uint64 `json:"id"`
	MediaURLHTTPS string `json:"media_url_https"`
	Type          string `json:"type"`
	Sizes         struct {
		Large MediaSize `json:"large"`
	} `json:"sizes"`
}

// Entities carries the structured parts of a tweet the client renders.
type Entities struct {
	Media []Media `json:"media"`
}

// Tweet mirrors the subset of the v1.1 status payload perch uses.
type Tweet struct {
	ID               uint64    `json:"id"`
	Text             string    `json:"text"`
	FullText         string    `json:"full_text"`
	CreatedAt        string    `json:"created_at"`
	User             *User     `json:"user"`
	Entities         Entities  `json:"entities"`
	ExtendedEntities *Entities `json:"extended_entities"`
	RetweetedStatus  *Tweet    `json:"retweeted_status"`
	FavoriteCount    int       `json:"favorite_count"`
	RetweetCount     int       `json:"retweet_count"`
}

// Body returns the full text when the API supplied it.
func (t Tweet) Body() string {
	if strings.TrimSpace(t.FullText) != "" {
		return t.FullText
	}
	return t.Text
}

// MediaList prefers extended entities, which list every attached photo.
func (t Tweet) MediaList() []Media {
	if t.ExtendedEntities != nil && len(t.ExtendedEntities.Media) > 0 {
		return t.ExtendedEntities.Media
	}
	return t.Entities.Media
}

// ParsedCreatedAt returns the creation time, or the zero time when unparsable.
func (t Tweet) ParsedCreatedAt() time.Time {
	ts, err := time.Parse(createdAtLayout, strings.TrimSpace(t.CreatedAt))
	if err != nil {
		return time.Time{}
	}
	return ts
}
