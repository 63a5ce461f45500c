// Shared wire types for the Folio REST API.
package services

import (
	"encoding/json"
	"time"
)

// Paginated is the backend's standard list envelope.
type Paginated[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// Profile represents a platform user profile.
type Profile struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatarUrl"`
	Followers   int    `json:"followerCount"`
	ProjectsNum int    `json:"projectCount"`
}

// Project represents a portfolio project showcase.
type Project struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CoverImageURL string    `json:"coverImageUrl"`
	OwnerHandle   string    `json:"ownerHandle"`
	ViewCount     int       `json:"viewCount"`
	LikeCount     int       `json:"likeCount"`
	Public        bool      `json:"public"`
	Sections      []Section `json:"sections,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Section is one editable content block of a project page.
//
// Content is an opaque document owned by the editor; it crosses the wire
// verbatim (the transcoder's pass-through set covers the "content" key).
type Section struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	SortOrder int             `json:"sortOrder"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Clip is a generated highlight clip for a project.
type Clip struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Status     string    `json:"status"`
	DurationMS int       `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Session describes the current authenticated session.
type Session struct {
	UserID    string    `json:"userId"`
	Handle    string    `json:"handle"`
	ExpiresAt time.Time `json:"expiresAt"`
}
