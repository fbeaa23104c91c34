package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/lib"
	"github.com/theleywin/Backend-Social-Feed/src/middleware"
	"github.com/theleywin/Backend-Social-Feed/src/services"
)

type PostController struct {
	posts *services.PostService
}

func NewPostController(posts *services.PostService) *PostController {
	return &PostController{posts: posts}
}

type bodyRequest struct {
	Body string `json:"body"`
}

// GetPosts returns every post, newest first
func (pc *PostController) GetPosts(c *fiber.Ctx) error {
	posts, err := pc.posts.ListPosts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

// CreatePost creates a post for the authenticated user
func (pc *PostController) CreatePost(c *fiber.Ctx) error {
	var req bodyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("Invalid request body"))
	}

	post, err := pc.posts.CreatePost(c.UserContext(), middleware.CurrentUser(c), req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

// GetPostByID returns a post with its comments
func (pc *PostController) GetPostByID(c *fiber.Ctx) error {
	detail, err := pc.posts.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(detail)
}

// CommentOnPost adds a comment by the authenticated user to a post
func (pc *PostController) CommentOnPost(c *fiber.Ctx) error {
	var req bodyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("Invalid request body"))
	}

	comment, err := pc.posts.CommentOnPost(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(comment)
}

func (pc *PostController) LikePost(c *fiber.Ctx) error {
	post, err := pc.posts.LikePost(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (pc *PostController) UnlikePost(c *fiber.Ctx) error {
	post, err := pc.posts.UnlikePost(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

// DeletePost deletes a post by ID if the authenticated user is the author
func (pc *PostController) DeletePost(c *fiber.Ctx) error {
	if err := pc.posts.DeletePost(c.UserContext(), middleware.CurrentUser(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Post deleted successfully"))
}

// UploadImage stores the multipart "image" file and sets it as the post image
func (pc *PostController) UploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("No image submitted"))
	}

	file, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("Could not read image"))
	}
	defer file.Close()

	url, err := pc.posts.SetPostImage(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), services.ImageUpload{
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Reader:      file,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Image uploaded successfully",
		"image":   url,
	})
}

// GetImage streams an uploaded image
func (pc *PostController) GetImage(c *fiber.Ctx) error {
	rc, contentType, err := pc.posts.OpenImage(c.UserContext(), c.Params("name"))
	if err != nil {
		return respondError(c, err)
	}
	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	// fasthttp closes rc once the body is written.
	return c.SendStream(rc)
}
