package post

import (
	"mime/multipart"
	"time"
)

// LatestLimit is the number of posts the public listing returns.
const LatestLimit = 20

type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	Cover     *string   `json:"cover"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Title   string
	Summary string
	Content string
	File    *multipart.FileHeader
}

// UpdateInput replaces the text fields; a nil File keeps the current cover.
type UpdateInput struct {
	ID      int64
	Title   string
	Summary string
	Content string
	File    *multipart.FileHeader
}
