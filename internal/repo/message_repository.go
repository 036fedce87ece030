package repo

import (
	"Memoria/internal/db"
	"Memoria/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrInvalidMessageID = errors.New("invalid message ID: cannot be empty")
	ErrMissingTarget    = errors.New("invalid message: needs a receiver or a group")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration for transient write failures
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	historyPageSize = 15
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

// MessageRepository persists relay messages. UpdateStatus is the
// conditional (tombstone-guarded) transition used by edit and delete.
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) (string, error)
	FindByID(ctx context.Context, id string) (*model.Message, error)
	UpdateStatus(ctx context.Context, id string, expectedStatuses []int, newStatus int, newBody *string, editedAt *time.Time) (bool, error)
	PrivateHistory(ctx context.Context, userA, userB int64, page int64) (*db.PaginatedResult[model.Message], error)
	GroupHistory(ctx context.Context, groupID string, page int64) (*db.PaginatedResult[model.Message], error)
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// InsertMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) (string, error) {
	if err := m.validateMessage(msg); err != nil {
		return "", err
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
			}

			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.Int64("sender_id", msg.SenderID),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err

		if !m.isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.Int64("sender_id", msg.SenderID),
	)

	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// FindByID - returns (nil, nil) when the message does not exist
// -----------------------------------------------------------------------------

func (m *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		m.logger.Error("failed to load message", zap.String("message_id", id), zap.Error(err))
		return nil, fmt.Errorf("load message failed: %w", err)
	}
	return msg, nil
}

// -----------------------------------------------------------------------------
// UpdateStatus - conditional status transition
// -----------------------------------------------------------------------------

// UpdateStatus transitions a message to newStatus only if its current
// status is one of expectedStatuses. Returns false when no document
// matched, which covers both "already tombstoned" and a lost race with
// a concurrent edit/delete. Deliberately not retried: the loser of the
// race must surface the conflict, not reapply it.
func (m *messageRepository) UpdateStatus(ctx context.Context, id string, expectedStatuses []int, newStatus int, newBody *string, editedAt *time.Time) (bool, error) {
	if id == "" {
		return false, ErrInvalidMessageID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("_id", id).
		In("status", expectedStatuses).
		Build()

	set := bson.M{"status": newStatus}
	if newBody != nil {
		set["body"] = *newBody
	}
	if editedAt != nil {
		set["edited_at"] = *editedAt
	}

	result, err := m.mongoRepo.UpdateOne(ctx, filter, set, nil)
	if err != nil {
		m.logger.Error("failed to update message status",
			zap.String("message_id", id),
			zap.Int("new_status", newStatus),
			zap.Error(err),
		)
		return false, fmt.Errorf("update message status failed: %w", err)
	}

	if result.MatchedCount == 0 {
		m.logger.Debug("conditional update matched nothing",
			zap.String("message_id", id),
			zap.Int("new_status", newStatus),
		)
		return false, nil
	}

	return true, nil
}

// -----------------------------------------------------------------------------
// History queries
// -----------------------------------------------------------------------------

func (m *messageRepository) PrivateHistory(ctx context.Context, userA, userB int64, page int64) (*db.PaginatedResult[model.Message], error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	// Both directions of the pair form one conversation.
	filter := db.NewFilter().Or(
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	).Build()

	return m.paginated(ctx, filter, page)
}

func (m *messageRepository) GroupHistory(ctx context.Context, groupID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if groupID == "" {
		return nil, ErrMissingTarget
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("group_id", groupID).Build()
	return m.paginated(ctx, filter, page)
}

func (m *messageRepository) paginated(ctx context.Context, filter bson.M, page int64) (*db.PaginatedResult[model.Message], error) {
	result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: historyPageSize,
		SortBy:   "created_at",
		SortDesc: true,
	})
	if err != nil {
		m.logger.Error("history query failed", zap.Error(err))
		return nil, fmt.Errorf("filter messages failed: %w", err)
	}

	m.logger.Debug("messages filtered",
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
		zap.Int64("page", result.Page),
	)
	return result, nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) validateMessage(msg *model.Message) error {
	if msg == nil {
		return ErrInvalidMessage
	}
	if msg.ReceiverID == nil && msg.GroupID == nil {
		return ErrMissingTarget
	}
	return nil
}

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *messageRepository) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
