package httpserver

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Jitendra2007-rbg/friday/internal/engine"
	"github.com/Jitendra2007-rbg/friday/internal/session"
	"github.com/Jitendra2007-rbg/friday/internal/store"
)

// Handlers binds the local status and control endpoints.
type Handlers struct {
	Start      func() error
	Stop       func()
	Snapshot   func() engine.State
	Transcript func() []session.Entry
	Reminders  store.ReminderStore
	OwnerID    string
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/status", h.status)
	e.GET("/transcript", h.transcript)
	e.POST("/conversation/start", h.startConversation)
	e.POST("/conversation/stop", h.stopConversation)
	e.GET("/reminders", h.listReminders)
}

func (h Handlers) status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Snapshot())
}

type transcriptEntry struct {
	ID       string `json:"id"`
	Speaker  string `json:"speaker"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Products []struct {
		Name  string `json:"name"`
		Image string `json:"image,omitempty"`
	} `json:"products,omitempty"`
}

func (h Handlers) transcript(c echo.Context) error {
	entries := h.Transcript()
	out := make([]transcriptEntry, 0, len(entries))
	for _, e := range entries {
		te := transcriptEntry{ID: e.ID, Speaker: string(e.Speaker), Text: e.Text, ImageURL: e.ImageURL}
		for _, p := range e.Products {
			img := ""
			if len(p.Image) > 0 {
				img = base64.StdEncoding.EncodeToString(p.Image)
			}
			te.Products = append(te.Products, struct {
				Name  string `json:"name"`
				Image string `json:"image,omitempty"`
			}{Name: p.Name, Image: img})
		}
		out = append(out, te)
	}
	return c.JSON(http.StatusOK, out)
}

func (h Handlers) startConversation(c echo.Context) error {
	if err := h.Start(); err != nil {
		if errors.Is(err, session.ErrActive) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, h.Snapshot())
}

func (h Handlers) stopConversation(c echo.Context) error {
	h.Stop()
	return c.JSON(http.StatusOK, h.Snapshot())
}

func (h Handlers) listReminders(c echo.Context) error {
	if h.Reminders == nil {
		return c.JSON(http.StatusOK, []store.Reminder{})
	}
	rs, err := h.Reminders.List(c.Request().Context(), h.OwnerID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	if rs == nil {
		rs = []store.Reminder{}
	}
	return c.JSON(http.StatusOK, rs)
}
