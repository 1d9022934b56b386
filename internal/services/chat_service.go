package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/redisclient"
	"github.com/crm-electoral/app-crm/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxChatBody = 2000

// ErrStreamUnavailable is returned when live chat updates need Redis and it is not configured
var ErrStreamUnavailable = errors.New("chat stream unavailable")

// ChatService stores leader to admin messages and fans new ones out over Redis
type ChatService struct {
	database *mongo.Database
	redis    *redisclient.Client
	channel  string
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(database *mongo.Database, redis *redisclient.Client, channel string, logger *logging.SafeLogger) *ChatService {
	return &ChatService{
		database: database,
		redis:    redis,
		channel:  channel,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ChatService) collection() *mongo.Collection {
	return s.database.Collection(config.AppConfig.ChatCollection)
}

// conversation resolves which leader's conversation the caller acts on
func conversation(identity models.SessionIdentity, requested string) (string, error) {
	if identity.IsAdmin() {
		leader := utils.NormalizeCedula(requested)
		if leader == "" {
			return "", fmt.Errorf("%w: cedula_lider es obligatoria", models.ErrValidation)
		}
		return leader, nil
	}
	if identity.Role == models.SessionLider && identity.Cedula != "" {
		return identity.Cedula, nil
	}
	return "", models.ErrForbidden
}

func participant(identity models.SessionIdentity) string {
	if identity.IsAdmin() {
		return models.AdminParticipant
	}
	return identity.Cedula
}

// Send stores a message and publishes it
func (s *ChatService) Send(ctx context.Context, identity models.SessionIdentity, req models.ChatSendRequest) (*models.ChatMessage, error) {
	leader, err := conversation(identity, req.CedulaLider)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, models.ErrEmptyMessage
	}
	if len([]rune(body)) > maxChatBody {
		return nil, fmt.Errorf("%w: el mensaje supera %d caracteres", models.ErrValidation, maxChatBody)
	}

	msg := &models.ChatMessage{
		CedulaLider: leader,
		From:        participant(identity),
		Body:        body,
		CreatedAt:   s.now().UTC(),
	}
	res, err := s.collection().InsertOne(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	msg.ID, _ = res.InsertedID.(primitive.ObjectID)

	s.publish(ctx, msg)
	return msg, nil
}

func (s *ChatService) publish(ctx context.Context, msg *models.ChatMessage) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to encode chat message", zap.Error(err))
		return
	}
	if err := s.redis.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish chat message", zap.Error(err))
	}
}

// List returns a conversation oldest first, at most limit messages
func (s *ChatService) List(ctx context.Context, identity models.SessionIdentity, cedulaLider string, limit int) ([]models.ChatMessage, error) {
	leader, err := conversation(identity, cedulaLider)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	cursor, err := s.collection().Find(ctx, bson.M{"cedula_lider": leader},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	messages := []models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead marks every message the other side sent in a conversation as read
func (s *ChatService) MarkRead(ctx context.Context, identity models.SessionIdentity, cedulaLider string) (int64, error) {
	leader, err := conversation(identity, cedulaLider)
	if err != nil {
		return 0, err
	}
	res, err := s.collection().UpdateMany(ctx,
		bson.M{"cedula_lider": leader, "read": false, "from": bson.M{"$ne": participant(identity)}},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.ModifiedCount, nil
}

// Unread counts messages waiting for the caller. Admins count across every
// conversation.
func (s *ChatService) Unread(ctx context.Context, identity models.SessionIdentity) (int64, error) {
	filter := bson.M{"read": false}
	switch {
	case identity.IsAdmin():
		filter["from"] = bson.M{"$ne": models.AdminParticipant}
	case identity.Role == models.SessionLider && identity.Cedula != "":
		filter["cedula_lider"] = identity.Cedula
		filter["from"] = models.AdminParticipant
	default:
		return 0, models.ErrForbidden
	}
	n, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

// Subscribe streams new messages visible to the caller until ctx is done
func (s *ChatService) Subscribe(ctx context.Context, identity models.SessionIdentity) (<-chan models.ChatMessage, error) {
	if !identity.IsAdmin() && identity.Role != models.SessionLider {
		return nil, models.ErrForbidden
	}
	if s.redis == nil {
		return nil, ErrStreamUnavailable
	}

	subCtx, span := observability.StartSpan(ctx, "chat", "chat.subscribe",
		attribute.String("chat.channel", s.channel),
		attribute.String("session.role", string(identity.Role)))
	pubsub := s.redis.Subscribe(subCtx, s.channel)
	if _, err := pubsub.Receive(subCtx); err != nil {
		observability.RecordError(span, err)
		span.End()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to chat: %w", err)
	}
	span.End()

	out := make(chan models.ChatMessage, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		incoming := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-incoming:
				if !ok {
					return
				}
				var msg models.ChatMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					s.logger.Warn("dropping malformed chat payload", zap.Error(err))
					continue
				}
				if !identity.IsAdmin() && msg.CedulaLider != identity.Cedula {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
