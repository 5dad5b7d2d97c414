package queue

import "time"

type EventType string

const (
	PostCreated       EventType = "post.created"
	PostCoverReplaced EventType = "post.cover_replaced"
)

// PostEvent is the message body published on the post events queue.
type PostEvent struct {
	Type       EventType `json:"type"`
	PostID     int64     `json:"post_id"`
	AuthorID   int64     `json:"author_id"`
	Cover      string    `json:"cover,omitempty"`
	OldCover   string    `json:"old_cover,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
