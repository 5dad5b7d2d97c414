package post

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"blog_api/internal/auth"
	"blog_api/internal/cache"
	"blog_api/internal/observability"
	"blog_api/internal/queue"
	"blog_api/internal/upload"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

var (
	alice = auth.Identity{ID: 1, Username: "alice"}
	bob   = auth.Identity{ID: 2, Username: "bob"}
)

// memoryRepository keeps posts in a map; the clock advances one second per insert.
type memoryRepository struct {
	mu     sync.Mutex
	nextID int64
	clock  time.Time
	posts  map[int64]*Post
	reads  int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		posts: map[int64]*Post{},
	}
}

func (r *memoryRepository) Create(_ context.Context, _ *sql.Tx, post *Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	post.ID = r.nextID
	post.CreatedAt = r.clock
	post.UpdatedAt = r.clock
	r.posts[post.ID] = clonePost(post)
	return post.ID, nil
}

func (r *memoryRepository) GetByID(_ context.Context, _ *sql.DB, id int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *memoryRepository) GetForUpdate(_ context.Context, _ *sql.Tx, id int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(p), nil
}

func (r *memoryRepository) ListLatest(_ context.Context, _ *sql.DB, limit int) ([]*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	posts := make([]*Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, clonePost(p))
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *memoryRepository) Update(_ context.Context, _ *sql.Tx, post *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[post.ID]; !ok {
		return ErrPostNotFound
	}
	r.clock = r.clock.Add(time.Second)
	post.UpdatedAt = r.clock
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *memoryRepository) stored(id int64) *Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clonePost(r.posts[id])
}

func clonePost(p *Post) *Post {
	c := *p
	if p.Cover != nil {
		cover := *p.Cover
		c.Cover = &cover
	}
	return &c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.PostEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event queue.PostEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []queue.PostEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.PostEvent(nil), p.events...)
}

type serviceFixture struct {
	service   *PostService
	repo      *memoryRepository
	sqlMock   sqlmock.Sqlmock
	storage   *upload.Storage
	redis     *miniredis.Miniredis
	publisher *recordingPublisher
	metrics   *observability.Metrics
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storage, err := upload.NewStorage(filepath.Join(t.TempDir(), "uploads"), 1<<20)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := newMemoryRepository()
	publisher := &recordingPublisher{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := NewPostService(repo, db, storage, cache.NewPostCache(client), publisher, metrics).(*PostService)

	return &serviceFixture{
		service:   svc,
		repo:      repo,
		sqlMock:   sqlMock,
		storage:   storage,
		redis:     mr,
		publisher: publisher,
		metrics:   metrics,
	}
}

func (f *serviceFixture) expectCommit() {
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()
}

func (f *serviceFixture) expectRollback() {
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectRollback()
}

func (f *serviceFixture) create(t *testing.T, author auth.Identity, title string) *Post {
	t.Helper()
	f.expectCommit()
	p, err := f.service.Create(context.Background(), author, CreateInput{
		Title:   title,
		Summary: "summary of " + title,
		Content: "<p>" + title + "</p>",
		File:    fileHeader(t, "cover.png", pngBytes),
	})
	require.NoError(t, err)
	return p
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func uploadedFiles(t *testing.T, s *upload.Storage) []string {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCreate_StoresCoverAndPublishes(t *testing.T) {
	f := newServiceFixture(t)

	p := f.create(t, alice, "First")

	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, Author{ID: 1, Username: "alice"}, p.Author)
	require.NotNil(t, p.Cover)
	assert.True(t, f.storage.Contains(*p.Cover))
	_, err := os.Stat(filepath.FromSlash(*p.Cover))
	assert.NoError(t, err)

	events := f.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, queue.PostCreated, events[0].Type)
	assert.Equal(t, p.ID, events[0].PostID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PostsCreatedTotal))
	assert.Equal(t, float64(len(pngBytes)), testutil.ToFloat64(f.metrics.UploadBytesTotal))
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestCreate_RejectsNonImage(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(context.Background(), alice, CreateInput{
		Title:   "T",
		Summary: "S",
		Content: "C",
		File:    fileHeader(t, "notes.txt", []byte("just some text")),
	})

	assert.ErrorIs(t, err, upload.ErrNotImage)
	assert.Empty(t, uploadedFiles(t, f.storage))
	assert.Empty(t, f.publisher.published())
}

func TestCreate_RequiresCover(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(context.Background(), alice, CreateInput{Title: "T", Summary: "S", Content: "C"})

	assert.ErrorIs(t, err, ErrCoverRequired)
}

func TestCreate_RemovesFileWhenInsertFails(t *testing.T) {
	f := newServiceFixture(t)
	f.sqlMock.ExpectBegin().WillReturnError(errors.New("db down"))

	_, err := f.service.Create(context.Background(), alice, CreateInput{
		Title:   "T",
		Summary: "S",
		Content: "C",
		File:    fileHeader(t, "cover.png", pngBytes),
	})

	require.Error(t, err)
	assert.Empty(t, uploadedFiles(t, f.storage))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CoversDeletedTotal.WithLabelValues("orphaned")))
}

func TestCreate_PublishFailureDoesNotFail(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.err = errors.New("broker unavailable")

	p := f.create(t, alice, "First")

	assert.Equal(t, int64(1), p.ID)
}

func TestGet_ReadsThroughCache(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t, alice, "Cached")
	ctx := context.Background()

	first, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	second, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, "Cached", first.Title)
	assert.Equal(t, "Cached", second.Title)
	assert.Equal(t, first.Author, second.Author)
	assert.Equal(t, 1, f.repo.reads)
	assert.True(t, f.redis.Exists(cache.PostKey(created.ID)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CacheHitsTotal.WithLabelValues("post")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CacheMissesTotal.WithLabelValues("post")))
}

func TestGet_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Get(context.Background(), 404)

	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestList_ReturnsTwentyNewest(t *testing.T) {
	f := newServiceFixture(t)
	for i := 1; i <= 25; i++ {
		f.create(t, alice, "post")
	}

	posts, err := f.service.List(context.Background())

	require.NoError(t, err)
	require.Len(t, posts, LatestLimit)
	assert.Equal(t, int64(25), posts[0].ID)
	assert.Equal(t, int64(6), posts[LatestLimit-1].ID)
	for i := 1; i < len(posts); i++ {
		assert.False(t, posts[i].CreatedAt.After(posts[i-1].CreatedAt))
	}
}

func TestList_Empty(t *testing.T) {
	f := newServiceFixture(t)

	posts, err := f.service.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestList_CreateInvalidatesCachedListing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.create(t, alice, "one")

	posts, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, f.redis.Exists(cache.LatestPostsKey))

	f.create(t, alice, "two")
	assert.False(t, f.redis.Exists(cache.LatestPostsKey))

	posts, err = f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "two", posts[0].Title)
}

func TestUpdate_ByAuthorWithoutFileKeepsCover(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t, alice, "Original")
	f.expectCommit()

	updated, err := f.service.Update(context.Background(), alice, UpdateInput{
		ID:      created.ID,
		Title:   "Edited",
		Summary: "new summary",
		Content: "<p>new</p>",
	})

	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, "new summary", updated.Summary)
	assert.Equal(t, *created.Cover, *updated.Cover)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, "Edited", f.repo.stored(created.ID).Title)

	// Only the creation event; the cover was not replaced.
	assert.Len(t, f.publisher.published(), 1)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestUpdate_WithFileReplacesCoverAndPublishes(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t, alice, "Original")
	f.expectCommit()

	updated, err := f.service.Update(context.Background(), alice, UpdateInput{
		ID:      created.ID,
		Title:   "Original",
		Summary: "S",
		Content: "C",
		File:    fileHeader(t, "new.png", pngBytes),
	})

	require.NoError(t, err)
	require.NotNil(t, updated.Cover)
	assert.NotEqual(t, *created.Cover, *updated.Cover)
	assert.True(t, f.storage.Contains(*updated.Cover))

	events := f.publisher.published()
	require.Len(t, events, 2)
	assert.Equal(t, queue.PostCoverReplaced, events[1].Type)
	assert.Equal(t, *created.Cover, events[1].OldCover)
	assert.Equal(t, *updated.Cover, events[1].Cover)
}

func TestUpdate_NonAuthorIsRejected(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t, alice, "Original")
	before := uploadedFiles(t, f.storage)
	f.expectRollback()

	_, err := f.service.Update(context.Background(), bob, UpdateInput{
		ID:      created.ID,
		Title:   "Hijacked",
		Summary: "S",
		Content: "C",
		File:    fileHeader(t, "evil.png", pngBytes),
	})

	assert.ErrorIs(t, err, ErrNotAuthor)

	stored := f.repo.stored(created.ID)
	assert.Equal(t, "Original", stored.Title)
	assert.Equal(t, *created.Cover, *stored.Cover)
	assert.ElementsMatch(t, before, uploadedFiles(t, f.storage))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PostUpdatesDenied))
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestUpdate_MissingPost(t *testing.T) {
	f := newServiceFixture(t)
	f.expectRollback()

	_, err := f.service.Update(context.Background(), alice, UpdateInput{ID: 77, Title: "T", Summary: "S", Content: "C"})

	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestUpdate_InvalidatesCachedPost(t *testing.T) {
	f := newServiceFixture(t)
	created := f.create(t, alice, "Original")
	ctx := context.Background()

	_, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, f.redis.Exists(cache.PostKey(created.ID)))

	f.expectCommit()
	_, err = f.service.Update(ctx, alice, UpdateInput{ID: created.ID, Title: "Fresh", Summary: "S", Content: "C"})
	require.NoError(t, err)
	assert.False(t, f.redis.Exists(cache.PostKey(created.ID)))

	got, err := f.service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", got.Title)
}
