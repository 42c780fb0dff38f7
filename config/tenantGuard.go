package config

import (
	"context"
	"strings"

	"github.com/mediflow/cabinet_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin enforces multi-office isolation by automatically scoping
// queries/updates/deletes to the request's office_id when the model has an office_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include office_id manually.
// - Queries that already carry an explicit office_id filter (e.g. the shared
//   catalog's "office_id = ? OR office_id IS NULL") are left untouched.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	officeID := officeIdFromContext(ctx)
	if officeID == "" {
		return
	}

	// Only apply if the current model/table includes an office_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasOfficeID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "office_id") {
			hasOfficeID = true
			break
		}
	}
	if !hasOfficeID {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasOfficeID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "office_id"},
				Value:  officeID,
			},
		},
	})
}

func officeIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyOfficeId).(string); ok && v != "" {
		return v
	}
	return ""
}

func whereHasOfficeID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasOfficeID(e) {
			return true
		}
	}
	return false
}

func exprHasOfficeID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsOfficeID(v.Column)
	case clause.Neq:
		return colIsOfficeID(v.Column)
	case clause.Gt:
		return colIsOfficeID(v.Column)
	case clause.Gte:
		return colIsOfficeID(v.Column)
	case clause.Lt:
		return colIsOfficeID(v.Column)
	case clause.Lte:
		return colIsOfficeID(v.Column)
	case clause.IN:
		return colIsOfficeID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasOfficeID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasOfficeID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "office_id")
	default:
		return false
	}
}

func colIsOfficeID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "office_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "office_id")
	default:
		return false
	}
}
