// internal/handlers/video.go
package handlers

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/limey-tt/limey-backend/internal/i18n"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/utils"
)

type VideoHandler struct {
	videoService *services.VideoService
}

func NewVideoHandler(videoService *services.VideoService) *VideoHandler {
	return &VideoHandler{
		videoService: videoService,
	}
}

// GET /videos
func (h *VideoHandler) Feed(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	videos, total, err := h.videoService.Feed(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(videos, total, params))
}

// GET /videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	videoID, ok := pathID(c, "id")
	if !ok {
		return
	}

	video, err := h.videoService.Get(c.Request.Context(), videoID)
	if err != nil {
		respondError(c, err)
		return
	}

	liked := false
	if userID, ok := utils.GetUserUUIDFromContext(c); ok {
		liked, _ = h.videoService.IsLiked(c.Request.Context(), videoID, userID)
	}

	utils.SuccessResponse(c, gin.H{"video": video, "liked": liked})
}

// GET /profiles/:id/videos
func (h *VideoHandler) ListByUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	videos, total, err := h.videoService.ListByUser(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(videos, total, params))
}

// POST /videos (multipart: video, thumbnail, title, description, category, tags)
func (h *VideoHandler) Upload(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	req := services.UploadVideoRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
	}
	for _, tag := range strings.Split(c.PostForm("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			req.Tags = append(req.Tags, tag)
		}
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	video, _, err := c.Request.FormFile("video")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "video"), nil)
		return
	}
	defer video.Close()

	var thumbnail io.Reader
	if thumb, _, err := c.Request.FormFile("thumbnail"); err == nil {
		defer thumb.Close()
		thumbnail = thumb
	}

	created, err := h.videoService.Upload(c.Request.Context(), userID, video, thumbnail, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyVideoUploaded),
		"video":   created,
	})
}

// POST /videos/:id/view
func (h *VideoHandler) RecordView(c *gin.Context) {
	videoID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.videoService.RecordView(c.Request.Context(), videoID); err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"recorded": true})
}

// POST /videos/:id/like
func (h *VideoHandler) Like(c *gin.Context) {
	h.toggleLike(c, true)
}

// DELETE /videos/:id/like
func (h *VideoHandler) Unlike(c *gin.Context) {
	h.toggleLike(c, false)
}

func (h *VideoHandler) toggleLike(c *gin.Context, like bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	videoID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var (
		result *services.LikeResult
		err    error
	)
	if like {
		result, err = h.videoService.Like(c.Request.Context(), videoID, userID)
	} else {
		result, err = h.videoService.Unlike(c.Request.Context(), videoID, userID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// DELETE /videos/:id
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	videoID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.videoService.Delete(c.Request.Context(), videoID, userID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyVideoDeleted)})
}
