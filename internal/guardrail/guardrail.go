package guardrail

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OperationKind classifies what a caller wants to do with a channel resource
type OperationKind string

const (
	OperationRead   OperationKind = "read"
	OperationModify OperationKind = "modify"
	OperationDelete OperationKind = "delete"
)

// ErrProtected is returned by SafeOperation when the guardrail denies the
// wrapped operation. It is terminal: callers must not retry.
var ErrProtected = errors.New("resource is protected")

// Decision is the outcome of a guardrail check
type Decision struct {
	Allowed     bool
	Reason      string
	Level       model.ProtectionLevel
	ClientLabel string
}

type staticEntry struct {
	level       model.ProtectionLevel
	reason      string
	clientLabel string
}

// staticProtected is the fixed in-process list of production channel
// resources that must never be touched. Checked before any store lookup so a
// store outage cannot weaken the rule.
var staticProtected = map[string]staticEntry{
	"r9b63a61541c8a6": {model.ProtectionCritical, "Instância de produção do cliente", "Clínica Vida Plena"},
	"f2c18aa0937bd51": {model.ProtectionCritical, "Canal principal de atendimento", "Grupo Andrade"},
	"a77e03c4d1f92b8": {model.ProtectionHigh, "Canal em migração, não desconectar", "Studio Bella Forma"},
}

// Checker is the authoritative gate for destructive operations on channel
// resources. It combines the static list with administrator-managed
// ProtectionEntry rows and fails closed on any lookup error.
type Checker struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewChecker creates a guardrail checker backed by the given database
func NewChecker(db *gorm.DB, log *zap.Logger) *Checker {
	return &Checker{db: db, log: log}
}

// CheckBeforeOperation decides whether the operation may proceed.
// Reads are always allowed but still audited. For modify and delete the
// static list is consulted first, then the protection store; a store error
// counts as protected.
func (c *Checker) CheckBeforeOperation(ctx context.Context, resourceID string, op OperationKind) Decision {
	if op == OperationRead {
		c.audit(resourceID, op, "allowed", "")
		return Decision{Allowed: true}
	}

	// Fast path: no I/O for known production resources
	if entry, ok := staticProtected[resourceID]; ok {
		d := Decision{
			Allowed:     false,
			Reason:      entry.reason,
			Level:       entry.level,
			ClientLabel: entry.clientLabel,
		}
		c.deny(resourceID, op, d, "static list")
		return d
	}

	var entry model.ProtectionEntry
	err := c.db.WithContext(ctx).Where("resource_id = ?", resourceID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.audit(resourceID, op, "allowed", "")
			return Decision{Allowed: true}
		}
		// Fail closed: an unreachable store is indistinguishable from a
		// protected resource for decision purposes.
		c.log.Error("Protection store lookup failed, denying operation",
			zap.String("resource_id", resourceID),
			zap.String("operation", string(op)),
			zap.Error(err))
		d := Decision{
			Allowed: false,
			Reason:  "protection store unavailable",
			Level:   model.ProtectionCritical,
		}
		c.deny(resourceID, op, d, "store error")
		return d
	}

	d := Decision{
		Allowed:     false,
		Reason:      entry.Reason,
		Level:       entry.Level,
		ClientLabel: entry.ClientLabel,
	}
	c.deny(resourceID, op, d, "protection entry")
	return d
}

// SafeOperation runs fn only if the guardrail allows the operation. The
// outcome of fn is audited separately from the check itself. All destructive
// provider calls must go through this wrapper.
func (c *Checker) SafeOperation(ctx context.Context, resourceID string, op OperationKind, fn func() error) error {
	decision := c.CheckBeforeOperation(ctx, resourceID, op)
	if !decision.Allowed {
		return fmt.Errorf("%w: %s (level=%s, client=%s)",
			ErrProtected, decision.Reason, decision.Level, decision.ClientLabel)
	}

	err := fn()
	if err != nil {
		c.audit(resourceID, op, "operation_failed", err.Error())
		return err
	}
	c.audit(resourceID, op, "operation_succeeded", "")
	return nil
}

func (c *Checker) deny(resourceID string, op OperationKind, d Decision, source string) {
	prometheus.RecordGuardrailDeny(string(op))
	c.log.Warn("Guardrail denied operation",
		zap.String("resource_id", resourceID),
		zap.String("operation", string(op)),
		zap.String("reason", d.Reason),
		zap.String("level", string(d.Level)),
		zap.String("client", d.ClientLabel),
		zap.String("source", source))
	c.audit(resourceID, op, "denied", fmt.Sprintf("%s (%s)", d.Reason, source))
}

// audit writes an AuditLog row. Failures are logged and swallowed: auditing
// must never fail the primary operation.
func (c *Checker) audit(resourceID string, op OperationKind, outcome, detail string) {
	row := model.AuditLog{
		ResourceID: resourceID,
		Operation:  string(op),
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := c.db.Create(&row).Error; err != nil {
		c.log.Error("Failed to write guardrail audit entry",
			zap.String("resource_id", resourceID),
			zap.Error(err))
	}
}
