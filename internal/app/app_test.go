package app

import (
	"testing"

	"github.com/smallbiznis/renewly/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSnowflake(t *testing.T) {
	node, err := RegisterSnowflake(config.Config{SnowflakeNode: 7})
	require.NoError(t, err)
	assert.NotZero(t, node.Generate())

	_, err = RegisterSnowflake(config.Config{SnowflakeNode: 5000})
	assert.Error(t, err)
}
