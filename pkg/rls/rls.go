// Package rls scopes a Postgres transaction to one tenant for row level security policies.
package rls

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Setting is the session variable the tenant_isolation policies read.
const Setting = "app.current_tenant_id"

var ErrMissingTenant = errors.New("rls_missing_tenant")

// WithTenant binds tenantID to the current transaction. Other dialects have no
// policies, so the call is a no-op there.
func WithTenant(tx *gorm.DB, tenantID snowflake.ID) error {
	if tenantID == 0 {
		return ErrMissingTenant
	}
	if tx.Dialector == nil || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", Setting, tenantID.String()).Error
}
