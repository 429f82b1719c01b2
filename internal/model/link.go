package model

import (
	"time"

	"github.com/zhejian/shortlink/internal/codec"
)

// Link represents a shortened URL entity
type Link struct {
	ID          int64     `json:"id"`
	LongURL     string    `json:"long_url"`
	CustomAlias string    `json:"custom_alias,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Clicks      int64     `json:"clicks"`
}

// ShortCode returns the alias when one was chosen, otherwise the base62
// encoding of the id.
func (l *Link) ShortCode() string {
	if l.CustomAlias != "" {
		return l.CustomAlias
	}
	return codec.Encode(uint64(l.ID))
}

// ShortenRequest represents the request body for POST /api/shorten
type ShortenRequest struct {
	LongURL     string `json:"long_url" form:"long_url"`
	CustomAlias string `json:"custom_alias,omitempty" form:"custom_alias"`
}

// ShortenResponse represents the response for a created short link
type ShortenResponse struct {
	Short string `json:"short"`
}

// StatsResponse represents link metadata returned by GET /api/stats/:code
type StatsResponse struct {
	Short       string `json:"short"`
	LongURL     string `json:"long_url"`
	CustomAlias string `json:"custom_alias,omitempty"`
	CreatedAt   string `json:"created_at"`
	Clicks      int64  `json:"clicks"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
