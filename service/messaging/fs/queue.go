package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"github.com/SwatiShah2000/ossim/service/messaging"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	// MessageStatePending indicates a message is waiting to be processed
	MessageStatePending MessageState = "pending"

	// MessageStateProcessing indicates a message is being processed
	MessageStateProcessing MessageState = "processing"

	// MessageStateCompleted indicates a message was successfully processed
	MessageStateCompleted MessageState = "completed"

	// MessageStateFailed indicates a message failed processing
	MessageStateFailed MessageState = "failed"
)

// Message implements messaging.Message for the filesystem queue
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to the completed directory
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = time.Now()
	return m.queue.settle(context.Background(), m, m.queue.completedDir)
}

// Nack moves the message to the failed directory
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.UpdatedAt = time.Now()
	return m.queue.settle(context.Background(), m, m.queue.failedDir)
}

// Config holds configuration for filesystem queue
type Config struct {
	// BasePath is the directory holding the queue state directories
	BasePath string

	// PollInterval is the blocking-consume poll cadence
	PollInterval time.Duration
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:     "/tmp/ossim/queue",
		PollInterval: 20 * time.Millisecond,
	}
}

// Queue implements a filesystem-based messaging.Queue. Each message lives in
// exactly one of the state directories; moving the file is the state
// transition, which keeps an inspectable trail of a run on disk.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	failedDir     string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		completedDir:  path.Join(config.BasePath, "completed"),
		failedDir:     path.Join(config.BasePath, "failed"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.failedDir} {
		exists, _ := fs.Exists(ctx, dir)
		if !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish adds a new message to the queue
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	message := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", time.Now().UnixNano(), message.ID)
	return q.fs.Upload(ctx, path.Join(q.pendingDir, name), file.DefaultFileOsMode, bytes.NewReader(data))
}

// Poll retrieves the oldest pending message if one is available
func (q *Queue[T]) Poll(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var pending []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			pending = append(pending, obj)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	obj := oldest(pending)

	data, err := q.fs.DownloadWithURL(ctx, obj.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", obj.Name(), err)
	}
	message := &Message[T]{}
	if err := json.Unmarshal(data, message); err != nil {
		destURL := path.Join(q.failedDir, fmt.Sprintf("invalid-%s", obj.Name()))
		_ = q.fs.Move(ctx, obj.URL(), destURL)
		return nil, fmt.Errorf("failed to decode message %s: %w", obj.Name(), err)
	}
	message.State = MessageStateProcessing
	message.UpdatedAt = time.Now()
	message.queue = q

	updated, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.fs.Upload(ctx, path.Join(q.processingDir, obj.Name()), file.DefaultFileOsMode, bytes.NewReader(updated)); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove pending message: %w", err)
	}
	return message, nil
}

// Consume blocks polling the pending directory until a message arrives
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()
	for {
		msg, err := q.Poll(ctx)
		if err != nil || msg != nil {
			return msg, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// settle rewrites the message into dest and removes its processing file
func (q *Queue[T]) settle(ctx context.Context, m *Message[T], dest string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	objects, err := q.fs.List(ctx, q.processingDir)
	if err != nil {
		return fmt.Errorf("failed to list processing messages: %w", err)
	}
	for _, obj := range objects {
		if obj.IsDir() || !strings.Contains(obj.Name(), m.ID) {
			continue
		}
		if err := q.fs.Upload(ctx, path.Join(dest, obj.Name()), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
			return err
		}
		return q.fs.Delete(ctx, obj.URL())
	}
	return fmt.Errorf("processing file for message %s not found", m.ID)
}

// oldest picks the lexicographically smallest object name; publish names are
// prefixed with a zero-padded timestamp so this is arrival order.
func oldest(objects []storage.Object) storage.Object {
	min := objects[0]
	for _, obj := range objects[1:] {
		if obj.Name() < min.Name() {
			min = obj
		}
	}
	return min
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
