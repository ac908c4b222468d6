package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/internal/storage"
	"thriftly_backend/middleware"
	"thriftly_backend/models"
)

type StoryHandler struct {
	stories  *services.StoryService
	reports  *services.ReportService
	uploader *storage.Uploader
}

func NewStoryHandler(stories *services.StoryService, reports *services.ReportService, uploader *storage.Uploader) *StoryHandler {
	return &StoryHandler{stories: stories, reports: reports, uploader: uploader}
}

type CommentRequest struct {
	Comment  string `json:"comment"`
	ParentID *uint  `json:"parent_id"`
}

type ReportRequest struct {
	Reason string `json:"reason"`
}

// GetStories - GET /api/stories. Authentication is optional; signed-in
// viewers see which stories they liked.
func (h *StoryHandler) GetStories(c *fiber.Ctx) error {
	stories, err := h.stories.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, stories)
}

// CreateStory - POST /api/stories (multipart "media", optional "caption")
func (h *StoryHandler) CreateStory(c *fiber.Ctx) error {
	name, data, present, err := readUpload(c, "media")
	if err != nil {
		return err
	}
	if !present {
		return models.NewValidationError("No file provided")
	}
	url, mediaType, err := h.uploader.Upload(c.UserContext(), "stories", name, data, true)
	if err != nil {
		return err
	}
	story, err := h.stories.Create(c.UserContext(), middleware.UserID(c), url, mediaType, c.FormValue("caption"))
	if err != nil {
		return err
	}
	return created(c, story)
}

// ToggleLike - POST /api/stories/:id/like
func (h *StoryHandler) ToggleLike(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	likes, liked, err := h.stories.ToggleLike(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"likes": likes, "liked": liked})
}

// GetComments - GET /api/stories/:id/comments[?tree=1]
func (h *StoryHandler) GetComments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.stories.Comments(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return err
	}
	if c.QueryBool("tree") {
		comments = services.BuildCommentTree(comments)
	}
	return ok(c, comments)
}

// AddComment - POST /api/stories/:id/comments
func (h *StoryHandler) AddComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.stories.AddComment(c.UserContext(), middleware.UserID(c), id, req.ParentID, req.Comment)
	if err != nil {
		return err
	}
	return created(c, comment)
}

// ToggleCommentLike - POST /api/stories/comments/:id/like
func (h *StoryHandler) ToggleCommentLike(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	likes, liked, err := h.stories.ToggleCommentLike(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"likes": likes, "liked": liked})
}

// ReportStory - POST /api/stories/:id/report
func (h *StoryHandler) ReportStory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req ReportRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	report, err := h.reports.ReportStory(c.UserContext(), middleware.UserID(c), id, req.Reason)
	if err != nil {
		return err
	}
	return created(c, report)
}
