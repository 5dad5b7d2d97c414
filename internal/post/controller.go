package post

import (
	"errors"
	"net/http"
	"strconv"

	"blog_api/internal/apperror"
	"blog_api/internal/auth"
	"blog_api/internal/upload"

	"github.com/gin-gonic/gin"
)

type PostController struct {
	service PostServiceInterface
}

func NewPostController(service PostServiceInterface) *PostController {
	return &PostController{
		service: service,
	}
}

type postFields struct {
	Title   string `form:"title" binding:"required"`
	Summary string `form:"summary" binding:"required"`
	Content string `form:"content" binding:"required"`
}

// CreatePost handles multipart post creation
func (pc *PostController) CreatePost(c *gin.Context) {
	identity, err := auth.GetIdentityFromContext(c)
	if err != nil {
		apperror.Abort(c, apperror.Unauthenticated, "User not authenticated")
		return
	}

	var req postFields
	if err := c.ShouldBind(&req); err != nil {
		apperror.Abort(c, apperror.Validation, "title, summary and content are required")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		apperror.Abort(c, apperror.Validation, "cover image file is required")
		return
	}

	post, err := pc.service.Create(c.Request.Context(), identity, CreateInput{
		Title:   req.Title,
		Summary: req.Summary,
		Content: req.Content,
		File:    file,
	})
	if err != nil {
		pc.abort(c, err, "Failed to create post")
		return
	}

	c.JSON(http.StatusCreated, post)
}

// ListPosts returns the latest posts, newest first
func (pc *PostController) ListPosts(c *gin.Context) {
	posts, err := pc.service.List(c.Request.Context())
	if err != nil {
		apperror.AbortInternal(c, err, "Failed to list posts")
		return
	}

	c.JSON(http.StatusOK, posts)
}

// GetPost handles getting a post by ID
func (pc *PostController) GetPost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apperror.Abort(c, apperror.NotFound, "Post not found")
		return
	}

	post, err := pc.service.Get(c.Request.Context(), id)
	if err != nil {
		pc.abort(c, err, "Failed to get post")
		return
	}

	c.JSON(http.StatusOK, post)
}

// UpdatePost handles multipart post updates by the author
func (pc *PostController) UpdatePost(c *gin.Context) {
	identity, err := auth.GetIdentityFromContext(c)
	if err != nil {
		apperror.Abort(c, apperror.Unauthenticated, "User not authenticated")
		return
	}

	var req struct {
		ID      string `form:"id" binding:"required"`
		Title   string `form:"title" binding:"required"`
		Summary string `form:"summary" binding:"required"`
		Content string `form:"content" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		apperror.Abort(c, apperror.Validation, "id, title, summary and content are required")
		return
	}

	id, err := strconv.ParseInt(req.ID, 10, 64)
	if err != nil {
		apperror.Abort(c, apperror.NotFound, "Post not found")
		return
	}

	// The file is optional; without it the current cover is kept.
	file, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		apperror.Abort(c, apperror.Validation, "invalid file upload")
		return
	}

	post, err := pc.service.Update(c.Request.Context(), identity, UpdateInput{
		ID:      id,
		Title:   req.Title,
		Summary: req.Summary,
		Content: req.Content,
		File:    file,
	})
	if err != nil {
		pc.abort(c, err, "Failed to update post")
		return
	}

	c.JSON(http.StatusOK, post)
}

func (pc *PostController) abort(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrPostNotFound):
		apperror.Abort(c, apperror.NotFound, "Post not found")
	case errors.Is(err, ErrNotAuthor):
		apperror.Abort(c, apperror.NotAuthor, "you are not the author")
	case errors.Is(err, ErrCoverRequired):
		apperror.Abort(c, apperror.Validation, "cover image file is required")
	case errors.Is(err, upload.ErrNotImage):
		apperror.Abort(c, apperror.Validation, "cover must be an image")
	case errors.Is(err, upload.ErrTooLarge):
		apperror.Abort(c, apperror.Validation, "cover image is too large")
	default:
		apperror.AbortInternal(c, err, message)
	}
}
