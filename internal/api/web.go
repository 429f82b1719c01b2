package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zhejian/shortlink/internal/service"
)

const (
	msgInvalidURL   = "Please enter a valid URL (include http:// or https://)"
	msgAliasTaken   = "This custom alias is already taken. Choose another."
	msgInvalidAlias = "Custom aliases may use letters, digits, dashes or underscores and cannot be a reserved word."
	msgCreated      = "Short URL created!"
)

// index handles GET /
func (h *Handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"messages": popFlashes(c),
	})
}

// createFromForm handles POST /
// Validation failures are flashed and redirected back to the form (303).
func (h *Handler) createFromForm(c *gin.Context) {
	ctx := c.Request.Context()
	longURL := strings.TrimSpace(c.PostForm("long_url"))
	alias := strings.TrimSpace(c.PostForm("custom_alias"))

	code, err := h.links.Create(ctx, longURL, alias)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			msg = msgInvalidURL
		case errors.Is(err, service.ErrAliasTaken):
			msg = msgAliasTaken
		case errors.Is(err, service.ErrInvalidAlias):
			msg = msgInvalidAlias
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating short link",
				slog.String("error", err.Error()))
			h.errorPage(c)
			return
		}
		addFlash(c, flash{Category: "error", Message: msg})
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	messages := append(popFlashes(c), flash{Category: "success", Message: msgCreated})
	c.HTML(http.StatusOK, "index.html", gin.H{
		"messages":   messages,
		"short_link": h.shortLink(code),
	})
}

// statsPage handles GET /stats/:code
func (h *Handler) statsPage(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	link, err := h.links.Stats(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.notFoundPage(c, code)
			return
		}
		h.logger.ErrorContext(ctx, "unexpected error fetching stats",
			slog.String("error", err.Error()),
			slog.String("code", code))
		h.errorPage(c)
		return
	}

	c.HTML(http.StatusOK, "stats.html", gin.H{
		"entry":      link,
		"created_at": link.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		"short_link": h.shortLink(code),
	})
}

// redirect handles GET /:code
// Resolves the code, counts the visit and redirects with 302 Found.
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	target, err := h.links.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.notFoundPage(c, code)
			return
		}
		h.logger.ErrorContext(ctx, "unexpected error during redirect",
			slog.String("error", err.Error()),
			slog.String("code", code))
		h.errorPage(c)
		return
	}

	c.Redirect(http.StatusFound, target)
}

func (h *Handler) notFoundPage(c *gin.Context, code string) {
	c.HTML(http.StatusNotFound, "404.html", gin.H{"short": code})
}

func (h *Handler) errorPage(c *gin.Context) {
	c.HTML(http.StatusInternalServerError, "error.html", nil)
}
