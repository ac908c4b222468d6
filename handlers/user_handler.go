package handlers

import (
	"github.com/gofiber/fiber/v2"

	"thriftly_backend/internal/services"
	"thriftly_backend/internal/storage"
	"thriftly_backend/middleware"
)

type UserHandler struct {
	users    *services.UserService
	follows  *services.FollowService
	reviews  *services.ReviewService
	wishlist *services.WishlistService
	uploader *storage.Uploader
}

func NewUserHandler(users *services.UserService, follows *services.FollowService, reviews *services.ReviewService, wishlist *services.WishlistService, uploader *storage.Uploader) *UserHandler {
	return &UserHandler{
		users:    users,
		follows:  follows,
		reviews:  reviews,
		wishlist: wishlist,
		uploader: uploader,
	}
}

type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// GetProfile - GET /api/users/:id
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	profile, err := h.users.PublicProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, profile)
}

// UpdateProfile - PUT /api/me. Multipart form with username, bio and an
// optional profile_pic file.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	in := services.ProfileInput{
		Username: c.FormValue("username"),
		Bio:      c.FormValue("bio"),
	}

	name, data, present, err := readUpload(c, "profile_pic")
	if err != nil {
		return err
	}
	if present {
		url, _, err := h.uploader.Upload(c.UserContext(), "profiles", name, data, false)
		if err != nil {
			return err
		}
		in.ProfilePic = url
	}

	user, err := h.users.UpdateProfile(c.UserContext(), middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return ok(c, user)
}

// GetWishlist - GET /api/me/wishlist
func (h *UserHandler) GetWishlist(c *fiber.Ctx) error {
	items, err := h.wishlist.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, items)
}

// Follow - POST /api/users/:id/follow
func (h *UserHandler) Follow(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.follows.Follow(c.UserContext(), middleware.UserID(c), id); err != nil {
		return err
	}
	return h.followState(c, id)
}

// Unfollow - DELETE /api/users/:id/follow
func (h *UserHandler) Unfollow(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.follows.Unfollow(c.UserContext(), middleware.UserID(c), id); err != nil {
		return err
	}
	return h.followState(c, id)
}

// FollowStatus - GET /api/users/:id/follow
func (h *UserHandler) FollowStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.followState(c, id)
}

func (h *UserHandler) followState(c *fiber.Ctx, targetID uint) error {
	ctx := c.UserContext()
	following, err := h.follows.IsFollowing(ctx, middleware.UserID(c), targetID)
	if err != nil {
		return err
	}
	counts, err := h.follows.Counts(ctx, targetID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"following": following, "counts": counts})
}

// GetReviews - GET /api/users/:id/reviews
func (h *UserHandler) GetReviews(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	reviews, err := h.reviews.List(ctx, id)
	if err != nil {
		return err
	}
	summary, err := h.reviews.Summary(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"summary": summary, "reviews": reviews})
}

// CreateReview - POST /api/users/:id/reviews
func (h *UserHandler) CreateReview(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	review, err := h.reviews.Create(c.UserContext(), middleware.UserID(c), id, req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return created(c, review)
}
