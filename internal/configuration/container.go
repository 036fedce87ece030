package configuration

import (
	"Memoria/internal/db"
	"Memoria/internal/handler"
	"Memoria/internal/hub"
	"Memoria/internal/model"
	"Memoria/internal/repo"
	"Memoria/internal/service"
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	HistoryHandler handler.HistoryHandler
	MonitorHandler handler.MonitorHandler
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()

	messagesRepo := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
	friendshipsRepo := db.NewRepository[model.Friendship](con, config.ChatDatabase.FriendshipsCollection)
	membersRepo := db.NewRepository[model.GroupMember](con, config.ChatDatabase.GroupMembersCollection)

	messageRepo := repo.NewMessageRepository(messagesRepo, logger)
	relationshipRepo := repo.NewRelationshipRepository(friendshipsRepo, membersRepo, logger)

	relayHub := hub.NewHub(messageRepo, relationshipRepo, logger)
	monitorService := hub.NewMonitorService(relayHub)

	historyService := service.NewHistoryService(messageRepo, relationshipRepo)
	historyHandler := handler.NewHistoryHandler(historyService)
	monitorHandler := handler.NewMonitorHandler(monitorService, relayHub)

	return &Container{
		HistoryHandler: historyHandler,
		MonitorHandler: monitorHandler,
		Hub:            relayHub,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
