package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/controllers"
)

// PostRoutes sets up post routes for the feed, details, comments, likes, deletion and image upload
func PostRoutes(app *fiber.App, pc *controllers.PostController, protect fiber.Handler) {
	post := app.Group("/posts")

	post.Get("/", pc.GetPosts)
	post.Post("/", protect, pc.CreatePost)
	post.Get("/:id", pc.GetPostByID)
	post.Post("/:id/comment", protect, pc.CommentOnPost)
	post.Get("/:id/like", protect, pc.LikePost)
	post.Get("/:id/unlike", protect, pc.UnlikePost)
	post.Post("/:id/like", protect, pc.LikePost)
	post.Post("/:id/unlike", protect, pc.UnlikePost)
	post.Delete("/:id", protect, pc.DeletePost)
	post.Post("/:id/image", protect, pc.UploadImage)

	app.Get("/images/:name", pc.GetImage)
}
