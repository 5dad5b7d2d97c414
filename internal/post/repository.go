package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var ErrPostNotFound = errors.New("post not found")

const selectPostColumns = `
	SELECT
		p.id, p.title, p.summary, p.content, p.cover,
		p.author_id, u.username,
		p.created_at, p.updated_at
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

type PostRepository struct{}

type PostRepositoryInterface interface {
	Create(ctx context.Context, tx *sql.Tx, post *Post) (int64, error)
	GetByID(ctx context.Context, db *sql.DB, id int64) (*Post, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*Post, error)
	ListLatest(ctx context.Context, db *sql.DB, limit int) ([]*Post, error)
	Update(ctx context.Context, tx *sql.Tx, post *Post) error
}

func NewPostRepository() PostRepositoryInterface {
	return &PostRepository{}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	var cover sql.NullString
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Summary,
		&p.Content,
		&cover,
		&p.Author.ID,
		&p.Author.Username,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cover.Valid {
		p.Cover = &cover.String
	}
	return &p, nil
}

func (r *PostRepository) Create(
	ctx context.Context,
	tx *sql.Tx,
	post *Post,
) (int64, error) {
	query := `
		INSERT INTO posts (
			title, summary, content, cover, author_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Summary,
		post.Content,
		post.Cover,
		post.Author.ID,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)

	if err != nil {
		logrus.WithError(err).WithField("author_id", post.Author.ID).Error("Failed to create post")
		return 0, fmt.Errorf("insert post: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"post_id":   post.ID,
		"author_id": post.Author.ID,
	}).Info("Post created successfully")

	return post.ID, nil
}

func (r *PostRepository) GetByID(
	ctx context.Context,
	db *sql.DB,
	id int64,
) (*Post, error) {
	p, err := scanPost(db.QueryRowContext(ctx, selectPostColumns+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		logrus.WithError(err).WithField("post_id", id).Error("Failed to get post by ID")
		return nil, err
	}

	return p, nil
}

// GetForUpdate loads a post and locks its row for the rest of tx.
func (r *PostRepository) GetForUpdate(
	ctx context.Context,
	tx *sql.Tx,
	id int64,
) (*Post, error) {
	p, err := scanPost(tx.QueryRowContext(ctx, selectPostColumns+` WHERE p.id = $1 FOR UPDATE OF p`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		logrus.WithError(err).WithField("post_id", id).Error("Failed to lock post")
		return nil, err
	}

	return p, nil
}

// ListLatest returns up to limit posts, newest first.
func (r *PostRepository) ListLatest(
	ctx context.Context,
	db *sql.DB,
	limit int,
) ([]*Post, error) {
	query := selectPostColumns + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]*Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			logrus.WithError(err).Error("Failed to scan post row")
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *PostRepository) Update(
	ctx context.Context,
	tx *sql.Tx,
	post *Post,
) error {
	query := `
		UPDATE posts
		SET title = $1,
		    summary = $2,
		    content = $3,
		    cover = $4,
		    updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Summary,
		post.Content,
		post.Cover,
		post.ID,
	).Scan(&post.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
		logrus.WithError(err).WithField("post_id", post.ID).Error("Failed to update post")
		return fmt.Errorf("update post: %w", err)
	}

	logrus.WithField("post_id", post.ID).Info("Post updated successfully")
	return nil
}
