package service

import (
	"Memoria/internal/db"
	"Memoria/internal/model"
	"Memoria/internal/repo"
	"context"
	"errors"
)

var ErrNotAllowed = errors.New("caller may not read this history")

// HistoryService serves paginated message history to the HTTP API,
// applying the same relationship checks the relay applies to live
// traffic.
type HistoryService interface {
	PrivateHistory(ctx context.Context, callerID, otherID int64, page int64) (*db.PaginatedResult[model.Message], error)
	GroupHistory(ctx context.Context, callerID int64, groupID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type historyService struct {
	messages repo.MessageRepository
	oracle   repo.RelationshipRepository
}

func NewHistoryService(messages repo.MessageRepository, oracle repo.RelationshipRepository) HistoryService {
	return &historyService{
		messages: messages,
		oracle:   oracle,
	}
}

func (s *historyService) PrivateHistory(ctx context.Context, callerID, otherID int64, page int64) (*db.PaginatedResult[model.Message], error) {
	accepted, err := s.oracle.IsAccepted(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, ErrNotAllowed
	}
	return s.messages.PrivateHistory(ctx, callerID, otherID, page)
}

func (s *historyService) GroupHistory(ctx context.Context, callerID int64, groupID string, page int64) (*db.PaginatedResult[model.Message], error) {
	member, err := s.oracle.IsMember(ctx, callerID, groupID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotAllowed
	}
	return s.messages.GroupHistory(ctx, groupID, page)
}
