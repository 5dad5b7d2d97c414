package worker

import (
	"errors"
	"fmt"
	"time"

	"blog_api/internal/observability"
	"blog_api/internal/queue"

	"github.com/sirupsen/logrus"
)

// ErrUnknownEvent marks a message no retry can fix.
var ErrUnknownEvent = errors.New("unknown event type")

// CoverRemover deletes stored cover files.
type CoverRemover interface {
	Remove(path string) error
}

// Processor applies the side effects of post events.
type Processor struct {
	covers  CoverRemover
	metrics *observability.Metrics
}

func NewProcessor(covers CoverRemover, metrics *observability.Metrics) *Processor {
	return &Processor{covers: covers, metrics: metrics}
}

func (p *Processor) Handle(event queue.PostEvent, workerID int) error {
	start := time.Now()
	defer func() {
		p.metrics.EventProcessingTime.WithLabelValues(string(event.Type)).Observe(time.Since(start).Seconds())
	}()

	switch event.Type {
	case queue.PostCreated:
		return p.postCreated(event, workerID)
	case queue.PostCoverReplaced:
		return p.coverReplaced(event, workerID)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}
}

func (p *Processor) postCreated(event queue.PostEvent, workerID int) error {
	logrus.WithFields(logrus.Fields{
		"worker":    workerID,
		"post_id":   event.PostID,
		"author_id": event.AuthorID,
	}).Info("Post published")
	return nil
}

// coverReplaced deletes the cover an update superseded.
func (p *Processor) coverReplaced(event queue.PostEvent, workerID int) error {
	if event.OldCover == "" || event.OldCover == event.Cover {
		return nil
	}

	if err := p.covers.Remove(event.OldCover); err != nil {
		return fmt.Errorf("remove old cover %s: %w", event.OldCover, err)
	}

	p.metrics.CoversDeletedTotal.WithLabelValues("replaced").Inc()
	logrus.WithFields(logrus.Fields{
		"worker":  workerID,
		"post_id": event.PostID,
		"path":    event.OldCover,
	}).Info("Old cover removed")
	return nil
}
