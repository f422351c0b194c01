package rls

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWithTenantIsNoopOutsidePostgres(t *testing.T) {
	conn := dbtest.Open(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return WithTenant(tx, snowflake.ID(42))
	})
	require.NoError(t, err)
}

func TestWithTenantRequiresTenant(t *testing.T) {
	conn := dbtest.Open(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return WithTenant(tx, 0)
	})
	assert.ErrorIs(t, err, ErrMissingTenant)
}
