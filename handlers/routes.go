package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"thriftly_backend/config"
	"thriftly_backend/internal/services"
	"thriftly_backend/internal/storage"
	"thriftly_backend/internal/ws"
	"thriftly_backend/middleware"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Users         *services.UserService
	Products      *services.ProductService
	Categories    *services.CategoryService
	Orders        *services.OrderService
	Offers        *services.OfferService
	Wishlist      *services.WishlistService
	Follows       *services.FollowService
	Reviews       *services.ReviewService
	Stories       *services.StoryService
	Reports       *services.ReportService
	Notifications *services.NotificationService
	Chat          *services.ChatService
	Payments      *services.PaymentService
	Contact       *services.ContactService

	Hub      *ws.Hub
	Uploader *storage.Uploader

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// SetupRoutes registers every endpoint on app.
func SetupRoutes(app *fiber.App, cfg *config.Config, d Deps) {
	auth := middleware.RequireAuth(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)

	authHandler := NewAuthHandler(d.Users, cfg.JWTExpiresIn, cfg.CookieSecure)
	userHandler := NewUserHandler(d.Users, d.Follows, d.Reviews, d.Wishlist, d.Uploader)
	productHandler := NewProductHandler(d.Products, d.Orders, d.Offers, d.Wishlist, d.Uploader)
	categoryHandler := NewCategoryHandler(d.Categories)
	orderHandler := NewOrderHandler(d.Orders, d.Offers)
	notificationHandler := NewNotificationHandler(d.Notifications)
	storyHandler := NewStoryHandler(d.Stories, d.Reports, d.Uploader)
	chatHandler := NewChatHandler(d.Hub, d.Chat, cfg.WSMessagesPerSecond, cfg.WSMessageBurst)
	paymentHandler := NewPaymentHandler(d.Payments, cfg.FrontendURL)
	uploadHandler := NewUploadHandler(d.Uploader)
	contactHandler := NewContactHandler(d.Contact)
	adminHandler := NewAdminHandler(d.Users, d.Products, d.Orders, d.Reports)

	// Health Check Endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "API is healthy",
		})
	})
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}
	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	// WebSocket
	app.Use("/ws", chatHandler.WebSocketUpgradeMiddleware)
	app.Get("/ws", auth, chatHandler.Handler())

	api := app.Group("/api")

	// Auth
	authGroup := api.Group("/auth")
	limited := middleware.AuthLimiter(20, time.Minute)
	authGroup.Post("/register", limited, authHandler.Register)
	authGroup.Post("/verify", limited, authHandler.Verify)
	authGroup.Post("/login", limited, authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Post("/forgot-password", limited, authHandler.ForgotPassword)
	authGroup.Post("/reset-password", limited, authHandler.ResetPassword)
	authGroup.Get("/me", auth, authHandler.Me)

	// Current user
	me := api.Group("/me", auth)
	me.Put("/", userHandler.UpdateProfile)
	me.Get("/products", productHandler.GetMyProducts)
	me.Get("/wishlist", userHandler.GetWishlist)

	// Users
	users := api.Group("/users")
	users.Get("/:id", userHandler.GetProfile)
	users.Get("/:id/reviews", userHandler.GetReviews)
	users.Post("/:id/reviews", auth, userHandler.CreateReview)
	users.Get("/:id/follow", auth, userHandler.FollowStatus)
	users.Post("/:id/follow", auth, userHandler.Follow)
	users.Delete("/:id/follow", auth, userHandler.Unfollow)
	users.Get("/:id/online", chatHandler.GetOnlineStatus)

	// Categories
	api.Get("/categories", categoryHandler.GetCategories)

	// Products
	products := api.Group("/products")
	products.Get("/", productHandler.GetProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", auth, productHandler.CreateProduct)
	products.Put("/:id", auth, productHandler.UpdateProduct)
	products.Delete("/:id", auth, productHandler.DeleteProduct)
	products.Post("/:id/buy", auth, productHandler.BuyProduct)
	products.Post("/:id/offers", auth, productHandler.MakeOffer)
	products.Post("/:id/wishlist", auth, productHandler.ToggleWishlist)

	// Orders & offers
	orders := api.Group("/orders", auth)
	orders.Get("/", orderHandler.GetMyOrders)
	orders.Get("/sales", orderHandler.GetMySales)
	orders.Put("/:id/status", orderHandler.UpdateStatus)

	offers := api.Group("/offers", auth)
	offers.Get("/received", orderHandler.GetReceivedOffers)
	offers.Get("/sent", orderHandler.GetSentOffers)
	offers.Put("/:id", orderHandler.RespondOffer)

	// Notifications
	notifications := api.Group("/notifications", auth)
	notifications.Get("/", notificationHandler.GetNotifications)
	notifications.Get("/unread", notificationHandler.GetUnreadCount)
	notifications.Put("/read", notificationHandler.MarkAllRead)

	// Chat
	chat := api.Group("/chat", auth)
	chat.Get("/conversations", chatHandler.GetConversations)
	chat.Get("/:room/messages", chatHandler.GetMessages)

	// Stories
	stories := api.Group("/stories")
	stories.Get("/", optionalAuth, storyHandler.GetStories)
	stories.Post("/", auth, storyHandler.CreateStory)
	stories.Post("/comments/:id/like", auth, storyHandler.ToggleCommentLike)
	stories.Post("/:id/like", auth, storyHandler.ToggleLike)
	stories.Get("/:id/comments", optionalAuth, storyHandler.GetComments)
	stories.Post("/:id/comments", auth, storyHandler.AddComment)
	stories.Post("/:id/report", auth, storyHandler.ReportStory)

	// Payments. The gateway redirects the browser to the esewa callbacks, so
	// they carry no session.
	payments := api.Group("/payments")
	payments.Post("/checkout", auth, paymentHandler.Checkout)
	payments.Get("/esewa/success", paymentHandler.EsewaSuccess)
	payments.Get("/esewa/failure", paymentHandler.EsewaFailure)
	payments.Get("/:uuid", auth, paymentHandler.GetPayment)

	// Uploads
	api.Post("/uploads", auth, uploadHandler.UploadImage)

	// Contact
	api.Post("/contact", limited, contactHandler.SendMessage)

	// Admin
	admin := api.Group("/admin", auth, middleware.RequireAdmin())
	admin.Get("/users", adminHandler.GetUsers)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/products", adminHandler.GetProducts)
	admin.Get("/orders", adminHandler.GetOrders)
	admin.Get("/reports", adminHandler.GetReports)
	admin.Put("/reports/:id/resolve", adminHandler.ResolveReport)

	app.Use(middleware.NotFound)
}
