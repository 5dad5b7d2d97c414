package post

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"time"

	"blog_api/internal/auth"
	"blog_api/internal/cache"
	"blog_api/internal/observability"
	"blog_api/internal/queue"
	"blog_api/internal/utils"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotAuthor     = errors.New("you are not the author")
	ErrCoverRequired = errors.New("cover image is required")
)

// CoverStorage persists uploaded cover images.
type CoverStorage interface {
	Save(fh *multipart.FileHeader) (string, int64, error)
	Remove(path string) error
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event queue.PostEvent) error
}

type PostServiceInterface interface {
	Create(ctx context.Context, author auth.Identity, in CreateInput) (*Post, error)
	Get(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context) ([]*Post, error)
	Update(ctx context.Context, actor auth.Identity, in UpdateInput) (*Post, error)
}

type PostService struct {
	repo      PostRepositoryInterface
	DB        *sql.DB
	storage   CoverStorage
	cache     Cache
	publisher EventPublisher
	metrics   *observability.Metrics
}

func NewPostService(
	repo PostRepositoryInterface,
	db *sql.DB,
	storage CoverStorage,
	cache Cache,
	publisher EventPublisher,
	metrics *observability.Metrics,
) PostServiceInterface {
	return &PostService{
		repo:      repo,
		DB:        db,
		storage:   storage,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
	}
}

func (s *PostService) Create(ctx context.Context, author auth.Identity, in CreateInput) (*Post, error) {
	if in.File == nil {
		return nil, ErrCoverRequired
	}

	coverPath, size, err := s.storage.Save(in.File)
	if err != nil {
		return nil, err
	}

	post := &Post{
		Title:   in.Title,
		Summary: in.Summary,
		Content: in.Content,
		Cover:   &coverPath,
		Author:  Author{ID: author.ID, Username: author.Username},
	}

	if err := utils.WithTransaction(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := s.repo.Create(ctx, tx, post)
		return err
	}); err != nil {
		s.discardCover(coverPath)
		return nil, err
	}

	s.metrics.PostsCreatedTotal.Inc()
	s.metrics.UploadBytesTotal.Add(float64(size))

	s.invalidate(ctx, cache.LatestPostsKey)
	s.publish(ctx, queue.PostEvent{
		Type:       queue.PostCreated,
		PostID:     post.ID,
		AuthorID:   post.Author.ID,
		Cover:      coverPath,
		OccurredAt: post.CreatedAt,
	})

	return post, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (*Post, error) {
	cacheKey := cache.PostKey(id)
	if cached, ok := s.cached(ctx, cacheKey, "post"); ok {
		var post Post
		if json.Unmarshal(cached, &post) == nil {
			return &post, nil
		}
	}

	post, err := s.repo.GetByID(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, post); err != nil {
		logrus.WithError(err).Warn("Failed to set cache for post")
	}

	return post, nil
}

func (s *PostService) List(ctx context.Context) ([]*Post, error) {
	if cached, ok := s.cached(ctx, cache.LatestPostsKey, "post_list"); ok {
		var posts []*Post
		if json.Unmarshal(cached, &posts) == nil {
			return posts, nil
		}
	}

	posts, err := s.repo.ListLatest(ctx, s.DB, LatestLimit)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.LatestPostsKey, posts); err != nil {
		logrus.WithError(err).Warn("Failed to set cache for post list")
	}

	return posts, nil
}

// Update applies in to the post if actor wrote it. The author check and the
// write happen under the same row lock.
func (s *PostService) Update(ctx context.Context, actor auth.Identity, in UpdateInput) (*Post, error) {
	var newCover string
	if in.File != nil {
		path, size, err := s.storage.Save(in.File)
		if err != nil {
			return nil, err
		}
		newCover = path
		s.metrics.UploadBytesTotal.Add(float64(size))
	}

	var updated *Post
	var oldCover string
	err := utils.WithTransaction(ctx, s.DB, func(tx *sql.Tx) error {
		post, err := s.repo.GetForUpdate(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		if post.Author.ID != actor.ID {
			return ErrNotAuthor
		}

		post.Title = in.Title
		post.Summary = in.Summary
		post.Content = in.Content
		if newCover != "" {
			if post.Cover != nil {
				oldCover = *post.Cover
			}
			post.Cover = &newCover
		}

		if err := s.repo.Update(ctx, tx, post); err != nil {
			return err
		}
		updated = post
		return nil
	})
	if err != nil {
		if newCover != "" {
			s.discardCover(newCover)
		}
		if errors.Is(err, ErrNotAuthor) {
			s.metrics.PostUpdatesDenied.Inc()
			logrus.WithFields(logrus.Fields{
				"post_id":  in.ID,
				"actor_id": actor.ID,
			}).Warn("Rejected post update from non-author")
		}
		return nil, err
	}

	s.metrics.PostsUpdatedTotal.Inc()
	s.invalidate(ctx, cache.PostKey(updated.ID), cache.LatestPostsKey)

	if oldCover != "" && oldCover != newCover {
		s.publish(ctx, queue.PostEvent{
			Type:       queue.PostCoverReplaced,
			PostID:     updated.ID,
			AuthorID:   updated.Author.ID,
			Cover:      newCover,
			OldCover:   oldCover,
			OccurredAt: updated.UpdatedAt,
		})
	}

	return updated, nil
}

func (s *PostService) cached(ctx context.Context, key, keyType string) ([]byte, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to read cache")
		return nil, false
	}
	if data == nil {
		s.metrics.CacheMissesTotal.WithLabelValues(keyType).Inc()
		return nil, false
	}
	s.metrics.CacheHitsTotal.WithLabelValues(keyType).Inc()
	return data, true
}

func (s *PostService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logrus.WithError(err).WithField("keys", keys).Warn("Failed to invalidate cache")
	}
}

func (s *PostService) publish(ctx context.Context, event queue.PostEvent) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":   event.Type,
			"post_id": event.PostID,
		}).Warn("Failed to publish post event")
	}
}

func (s *PostService) discardCover(path string) {
	if err := s.storage.Remove(path); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("Failed to discard cover")
		return
	}
	s.metrics.CoversDeletedTotal.WithLabelValues("orphaned").Inc()
}
