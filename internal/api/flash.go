package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "shortlink_flash"

// flash is a one-shot message carried across the form's redirect.
type flash struct {
	Category string `json:"category"` // "error" or "success"
	Message  string `json:"message"`
}

// addFlash appends a message to the pending flash cookie.
func addFlash(c *gin.Context, f flash) {
	pending := readFlashes(c)
	pending = append(pending, f)

	raw, err := json.Marshal(pending)
	if err != nil {
		return
	}
	setFlashCookie(c, base64.RawURLEncoding.EncodeToString(raw), 0)
}

// popFlashes returns pending messages and clears the cookie.
func popFlashes(c *gin.Context) []flash {
	pending := readFlashes(c)
	if len(pending) > 0 {
		setFlashCookie(c, "", -1)
	}
	return pending
}

func readFlashes(c *gin.Context) []flash {
	value, err := c.Cookie(flashCookie)
	if err != nil || value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var pending []flash
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil
	}
	return pending
}

func setFlashCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, value, maxAge, "/", "", false, true)
}
