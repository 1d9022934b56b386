package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Cedula     string             `bson:"cedula,omitempty" json:"cedula,omitempty"`
	Role       string             `bson:"role" json:"role"`
	SessionID  string             `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Action     string             `bson:"action" json:"action"`
	Resource   string             `bson:"resource" json:"resource"`
	ResourceID string             `bson:"resource_id" json:"resource_id"`
	OldValue   interface{}        `bson:"old_value,omitempty" json:"old_value,omitempty"`
	NewValue   interface{}        `bson:"new_value,omitempty" json:"new_value,omitempty"`
	IPAddress  string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent  string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	RequestID  string             `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
	Metadata   map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// Audit constants
const (
	AuditActionCreate  = "CREATE"
	AuditActionUpdate  = "UPDATE"
	AuditActionApprove = "APPROVE"
	AuditActionReject  = "REJECT"
	AuditActionPromote = "PROMOTE"
	AuditActionImport  = "IMPORT"
	AuditActionMigrate = "MIGRATE"
	AuditActionLogin   = "LOGIN"
	AuditActionLogout  = "LOGOUT"

	AuditResourcePersona   = "persona"
	AuditResourceEquipo    = "equipo"
	AuditResourceSession   = "session"
	AuditResourceImport    = "import"
	AuditResourceMigration = "migration"
	AuditResourceAdminCode = "admin_code"
	AuditResourceChat      = "chat"
	AuditResourceLink      = "link"
)

// AuditContext contains context information for audit logging
type AuditContext struct {
	Cedula    string
	Role      string
	SessionID string
	IPAddress string
	UserAgent string
	RequestID string
}

// AuditWorker writes audit logs asynchronously in batches
type AuditWorker struct {
	auditChan chan AuditLog
	workers   int
	wg        sync.WaitGroup
}

var (
	auditWorker *AuditWorker
	once        sync.Once
)

// InitAuditWorker starts the audit worker pool
func InitAuditWorker(workers int, bufferSize int) {
	once.Do(func() {
		auditWorker = &AuditWorker{
			auditChan: make(chan AuditLog, bufferSize),
			workers:   workers,
		}
		auditWorker.start()
	})
}

func (aw *AuditWorker) start() {
	aw.wg.Add(aw.workers)
	for i := 0; i < aw.workers; i++ {
		go func() {
			defer aw.wg.Done()
			aw.processAuditLogs()
		}()
	}

	logging.Logger.Info("audit worker started",
		zap.Int("workers", aw.workers),
		zap.Int("buffer_size", cap(aw.auditChan)))
}

func (aw *AuditWorker) processAuditLogs() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	const batchSize = 50
	var batch []AuditLog

	for {
		select {
		case entry, ok := <-aw.auditChan:
			if !ok {
				aw.flushBatch(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				aw.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				aw.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (aw *AuditWorker) flushBatch(batch []AuditLog) {
	if len(batch) == 0 {
		return
	}

	operations := make([]mongo.WriteModel, 0, len(batch))
	for _, entry := range batch {
		operations = append(operations, mongo.NewInsertOneModel().SetDocument(entry))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := config.MongoDB.Collection(config.AppConfig.AuditLogsCollection).
		BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	if err != nil {
		logging.Logger.Error("failed to insert audit log batch",
			zap.Error(err),
			zap.Int("batch_size", len(batch)))
	}
}

// Stop drains the queue and waits for the workers
func (aw *AuditWorker) Stop() {
	if aw == nil {
		return
	}
	close(aw.auditChan)
	aw.wg.Wait()
}

// GetAuditWorker returns the global audit worker instance
func GetAuditWorker() *AuditWorker {
	return auditWorker
}

// LogAuditEvent records an audit event. It queues the entry when the worker
// runs and writes synchronously otherwise or when the queue is full.
func LogAuditEvent(ctx context.Context, auditCtx AuditContext, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) error {
	if config.AppConfig == nil || !config.AppConfig.AuditLogsEnabled || config.MongoDB == nil {
		return nil
	}

	entry := NewAuditLog(auditCtx, action, resource, resourceID, oldValue, newValue, metadata)

	if auditWorker != nil {
		select {
		case auditWorker.auditChan <- entry:
			return nil
		default:
			logging.Logger.Warn("audit channel full, falling back to synchronous logging",
				zap.String("action", action))
		}
	}

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := config.MongoDB.Collection(config.AppConfig.AuditLogsCollection).InsertOne(dbCtx, entry); err != nil {
		logging.Logger.Error("failed to insert audit log", zap.Error(err))
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// NewAuditLog builds an entry with sanitized values
func NewAuditLog(auditCtx AuditContext, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) AuditLog {
	return AuditLog{
		Cedula:     auditCtx.Cedula,
		Role:       auditCtx.Role,
		SessionID:  auditCtx.SessionID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValue:   SanitizeAuditData(oldValue),
		NewValue:   SanitizeAuditData(newValue),
		IPAddress:  auditCtx.IPAddress,
		UserAgent:  auditCtx.UserAgent,
		RequestID:  auditCtx.RequestID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// AuditContextFromIdentity builds an audit context for calls made outside
// of an HTTP request, such as the CLI.
func AuditContextFromIdentity(identity models.SessionIdentity) AuditContext {
	return AuditContext{
		Cedula:    identity.Cedula,
		Role:      string(identity.Role),
		SessionID: identity.SessionID,
	}
}

// GetAuditContextFromGin extracts audit context from Gin context
func GetAuditContextFromGin(c *gin.Context) AuditContext {
	auditCtx := AuditContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		RequestID: c.GetString("request_id"),
	}
	if value, exists := c.Get(models.IdentityContextKey); exists {
		if identity, ok := value.(models.SessionIdentity); ok {
			auditCtx.Cedula = identity.Cedula
			auditCtx.Role = string(identity.Role)
			auditCtx.SessionID = identity.SessionID
		}
	}
	return auditCtx
}

// SanitizeAuditData removes secrets from audit data
func SanitizeAuditData(data interface{}) interface{} {
	if data == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return data
	}

	var sanitized interface{}
	if err := json.Unmarshal(jsonData, &sanitized); err != nil {
		return data
	}

	sanitizeMap(sanitized)
	return sanitized
}

func sanitizeMap(data interface{}) {
	switch v := data.(type) {
	case map[string]interface{}:
		for _, field := range []string{"code", "code_hash", "token", "face_descriptor", "password"} {
			if _, exists := v[field]; exists {
				v[field] = "[REDACTED]"
			}
		}
		for _, value := range v {
			sanitizeMap(value)
		}
	case []interface{}:
		for _, item := range v {
			sanitizeMap(item)
		}
	}
}
