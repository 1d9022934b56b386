package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer       = "app-crm"
	phoneSuffixDigits = 4
)

// AuthService issues and resolves sessions for admins and leaders
type AuthService struct {
	database *mongo.Database
	cache    *CacheService
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(database *mongo.Database, cache *CacheService, logger *logging.SafeLogger) *AuthService {
	return &AuthService{
		database: database,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// AdminLogin checks an access code against the active admin codes. Codes
// enrolled with a face descriptor also need a matching descriptor.
func (s *AuthService) AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.LoginResponse, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, models.ErrInvalidCredentials
	}

	cursor, err := s.database.Collection(config.AppConfig.AdminCodeCollection).Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to load admin codes: %w", err)
	}
	var codes []models.AdminCode
	if err := cursor.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("failed to decode admin codes: %w", err)
	}

	for _, candidate := range codes {
		if bcrypt.CompareHashAndPassword([]byte(candidate.CodeHash), []byte(code)) != nil {
			continue
		}

		if candidate.RequiresFace() {
			distance, err := FaceDistance(candidate.FaceDescriptor, req.FaceDescriptor)
			if err != nil || distance > config.AppConfig.FaceMatchThreshold {
				observability.Logins.WithLabelValues(string(models.SessionAdmin), "face_mismatch").Inc()
				s.logger.Warn("admin face verification failed",
					zap.String("code_id", candidate.ID),
					zap.Float64("distance", distance))
				return nil, models.ErrFaceMismatch
			}
		}

		observability.Logins.WithLabelValues(string(models.SessionAdmin), "success").Inc()
		return s.createSession(ctx, models.Session{
			Nombre:    candidate.Label,
			Role:      models.SessionAdmin,
			AdminCode: candidate.ID,
		})
	}

	observability.Logins.WithLabelValues(string(models.SessionAdmin), "invalid").Inc()
	return nil, models.ErrInvalidCredentials
}

// LeaderLogin signs a leader in with its cedula. When the leader has a phone
// on file its last four digits are required as well.
func (s *AuthService) LeaderLogin(ctx context.Context, req models.LeaderLoginRequest) (*models.LoginResponse, error) {
	cedula := utils.NormalizeCedula(req.Cedula)

	var leader models.Person
	err := s.database.Collection(config.AppConfig.PersonCollection).
		FindOne(ctx, bson.M{"cedula": cedula, "rol": models.RolLider}).Decode(&leader)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			observability.Logins.WithLabelValues(string(models.SessionLider), "invalid").Inc()
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load leader: %w", err)
	}

	if leader.Telefono != nil && *leader.Telefono != "" {
		expected := utils.PhoneSuffix(*leader.Telefono, phoneSuffixDigits)
		if expected != "" && utils.NormalizePhone(req.TelefonoSufijo) != expected {
			observability.Logins.WithLabelValues(string(models.SessionLider), "invalid").Inc()
			return nil, models.ErrInvalidCredentials
		}
	}

	observability.Logins.WithLabelValues(string(models.SessionLider), "success").Inc()
	return s.createSession(ctx, models.Session{
		Cedula: leader.Cedula,
		Nombre: leader.NombreCompleto,
		Role:   models.SessionLider,
	})
}

func (s *AuthService) createSession(ctx context.Context, session models.Session) (*models.LoginResponse, error) {
	now := s.now().UTC()
	session.ID = utils.GenerateUUID()
	session.CreatedAt = now
	session.ExpiresAt = now.Add(config.AppConfig.SessionTTL)

	if _, err := s.database.Collection(config.AppConfig.SessionCollection).InsertOne(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	s.cache.SetJSON(ctx, sessionKey(session.ID), session, config.AppConfig.SessionTTL)

	token, err := s.signToken(&session)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("role", string(session.Role)))

	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Identity:  session.Identity(),
	}, nil
}

func (s *AuthService) signToken(session *models.Session) (string, error) {
	subject := session.Cedula
	if subject == "" {
		subject = string(session.Role)
	}

	claims := models.SessionClaims{
		Cedula: session.Cedula,
		Role:   session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.AppConfig.SessionSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to the identity of a live session
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.SessionIdentity, error) {
	claims := &models.SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) {
			return []byte(config.AppConfig.SessionSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !utils.IsUUID(claims.ID) {
		return models.SessionIdentity{}, models.ErrSessionNotFound
	}

	var session models.Session
	if s.cache.GetJSON(ctx, sessionKey(claims.ID), &session) && session.ExpiresAt.After(s.now()) {
		return session.Identity(), nil
	}

	err = s.database.Collection(config.AppConfig.SessionCollection).
		FindOne(ctx, bson.M{"_id": claims.ID, "expires_at": bson.M{"$gt": s.now()}}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SessionIdentity{}, models.ErrSessionNotFound
		}
		return models.SessionIdentity{}, fmt.Errorf("failed to load session: %w", err)
	}

	if ttl := session.ExpiresAt.Sub(s.now()); ttl > 0 {
		s.cache.SetJSON(ctx, sessionKey(session.ID), session, ttl)
	}
	return session.Identity(), nil
}

// Logout deletes the session everywhere it is stored
func (s *AuthService) Logout(ctx context.Context, identity models.SessionIdentity) error {
	if identity.SessionID == "" {
		return models.ErrSessionNotFound
	}
	if _, err := s.database.Collection(config.AppConfig.SessionCollection).DeleteOne(ctx, bson.M{"_id": identity.SessionID}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.cache.Delete(ctx, sessionKey(identity.SessionID))
	return nil
}

// CreateAdminCode stores a new bcrypt-hashed admin access code
func (s *AuthService) CreateAdminCode(ctx context.Context, label, code string, face []float64) (*models.AdminCode, error) {
	label = strings.TrimSpace(label)
	if label == "" || len(strings.TrimSpace(code)) < 6 {
		return nil, fmt.Errorf("%w: se requiere una etiqueta y un código de al menos 6 caracteres", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(code)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin code: %w", err)
	}

	adminCode := &models.AdminCode{
		ID:             utils.GenerateUUID(),
		Label:          label,
		CodeHash:       string(hash),
		FaceDescriptor: face,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if _, err := s.database.Collection(config.AppConfig.AdminCodeCollection).InsertOne(ctx, adminCode); err != nil {
		return nil, fmt.Errorf("failed to store admin code: %w", err)
	}
	return adminCode, nil
}

// FaceDistance is the Euclidean distance between two face descriptors
func FaceDistance(enrolled, candidate []float64) (float64, error) {
	if len(candidate) == 0 || len(enrolled) != len(candidate) {
		return math.Inf(1), fmt.Errorf("descriptor length mismatch: %d vs %d", len(enrolled), len(candidate))
	}
	var sum float64
	for i := range enrolled {
		d := enrolled[i] - candidate[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
