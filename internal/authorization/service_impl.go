package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/condoledger/internal/audit/domain"
	"github.com/smallbiznis/condoledger/internal/identity"
	"github.com/smallbiznis/condoledger/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectReservation = "reservation"
	ObjectArea        = "common_area"
	ObjectLedger      = "ledger"
	ObjectCategory    = "charge_category"
	ObjectPayment     = "payment"
	ObjectRent        = "rent"
	ObjectFine        = "fine"
	ObjectAuditLog    = "audit_log"
)

const (
	ActionView     = "view"
	ActionCreate   = "create"
	ActionManage   = "manage"
	ActionCancel   = "cancel"
	ActionConfirm  = "confirm"
	ActionComplete = "complete"

	ActionAddLine    = "add_line"
	ActionRemoveLine = "remove_line"

	ActionPaymentApply  = "apply"
	ActionPaymentRemove = "remove"

	ActionRentGenerate = "generate"
	ActionFineConvert  = "convert"
)

var (
	ErrForbidden     = errs.ErrForbidden
	ErrInvalidObject = errs.New(errs.KindValidation, "invalid_authorization_object")
	ErrInvalidAction = errs.New(errs.KindValidation, "invalid_authorization_action")
)

type Service interface {
	// Authorize checks the principal carried by ctx against object/action.
	Authorize(ctx context.Context, object string, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	principal, ok := identity.FromContext(ctx)
	if !ok {
		return errs.ErrUnauthenticated
	}

	allowed, err := s.enforcer.Enforce(principal.CasbinSubject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", string(principal.Role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, principal, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, principal identity.Principal, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := object + "." + action
	_ = s.auditSvc.AuditLog(ctx, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   string(principal.Role),
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Resident permissions; ownership is checked by the services.
		{"role:resident", ObjectReservation, ActionView},
		{"role:resident", ObjectReservation, ActionCreate},
		{"role:resident", ObjectReservation, ActionCancel},
		{"role:resident", ObjectArea, ActionView},
		{"role:resident", ObjectLedger, ActionView},
		{"role:resident", ObjectPayment, ActionPaymentApply},
		{"role:resident", ObjectFine, ActionView},

		// Admin permissions on top of the resident ones
		{"role:admin", ObjectReservation, ActionConfirm},
		{"role:admin", ObjectReservation, ActionComplete},
		{"role:admin", ObjectArea, ActionManage},
		{"role:admin", ObjectLedger, ActionAddLine},
		{"role:admin", ObjectLedger, ActionRemoveLine},
		{"role:admin", ObjectCategory, ActionView},
		{"role:admin", ObjectCategory, ActionManage},
		{"role:admin", ObjectPayment, ActionPaymentRemove},
		{"role:admin", ObjectRent, ActionRentGenerate},
		{"role:admin", ObjectFine, ActionCreate},
		{"role:admin", ObjectFine, ActionFineConvert},
		{"role:admin", ObjectAuditLog, ActionView},

		// System permissions (scheduler and admin CLI)
		{"role:system", ObjectRent, ActionRentGenerate},
		{"role:system", ObjectFine, ActionFineConvert},
		{"role:system", ObjectLedger, ActionView},
		{"role:system", ObjectLedger, ActionAddLine},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	if _, err := enforcer.AddGroupingPolicy("role:admin", "role:resident"); err != nil {
		return err
	}
	return nil
}
