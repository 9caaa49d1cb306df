// internal/handlers/share.go
package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/config"
	"github.com/limey-tt/limey-backend/internal/services"
)

const maxShareDescription = 200

var sharePage = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} | {{.SiteName}}</title>
<meta name="description" content="{{.Description}}">
<link rel="canonical" href="{{.CanonicalURL}}">
<meta property="og:site_name" content="{{.SiteName}}">
<meta property="og:type" content="video.other">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:url" content="{{.CanonicalURL}}">
{{if .ImageURL}}<meta property="og:image" content="{{.ImageURL}}">
{{end}}{{if .VideoURL}}<meta property="og:video" content="{{.VideoURL}}">
{{end}}<meta name="twitter:card" content="{{if .ImageURL}}summary_large_image{{else}}summary{{end}}">
<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.Description}}">
{{if .ImageURL}}<meta name="twitter:image" content="{{.ImageURL}}">
{{end}}<meta http-equiv="refresh" content="0;url={{.AppURL}}">
</head>
<body>
<p><a href="{{.AppURL}}">Watch {{.Title}} on {{.SiteName}}</a></p>
<script>window.location.replace({{.AppURL}});</script>
</body>
</html>
`))

type shareData struct {
	SiteName     string
	Title        string
	Description  string
	ImageURL     string
	VideoURL     string
	CanonicalURL string
	AppURL       string
}

// ShareHandler serves crawler-friendly landing pages for shared videos.
type ShareHandler struct {
	videoService *services.VideoService
	frontend     config.FrontendConfig
	publicURL    string
}

func NewShareHandler(videoService *services.VideoService, frontend config.FrontendConfig, publicURL string) *ShareHandler {
	return &ShareHandler{
		videoService: videoService,
		frontend:     frontend,
		publicURL:    strings.TrimRight(publicURL, "/"),
	}
}

// GET /video/:id
func (h *ShareHandler) VideoPage(c *gin.Context) {
	appBase := strings.TrimRight(h.frontend.BaseURL, "/")

	data := shareData{
		SiteName:     h.frontend.SiteName,
		Title:        h.frontend.SiteName,
		Description:  "Short videos from Trinidad and Tobago.",
		CanonicalURL: h.publicURL + c.Request.URL.Path,
		AppURL:       appBase + "/",
	}
	status := http.StatusOK

	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		status = http.StatusNotFound
	} else if video, err := h.videoService.Get(c.Request.Context(), videoID); err != nil {
		status = http.StatusNotFound
		if !isNotFound(err) {
			logrus.WithError(err).WithField("video_id", videoID).Error("Failed to load shared video")
			status = http.StatusInternalServerError
		}
	} else {
		data.Title = video.Title
		if video.Description != "" {
			data.Description = truncate(video.Description, maxShareDescription)
		} else if video.Owner != nil {
			data.Description = "A video by @" + video.Owner.Username
		}
		data.ImageURL = video.ThumbnailURL
		data.VideoURL = video.VideoURL
		data.CanonicalURL = h.publicURL + "/video/" + video.ID.String()
		data.AppURL = appBase + "/video/" + video.ID.String()
	}

	var buf bytes.Buffer
	if err := sharePage.Execute(&buf, data); err != nil {
		logrus.WithError(err).Error("Failed to render share page")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func isNotFound(err error) bool {
	for sentinel := range notFound {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
