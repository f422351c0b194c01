// Package app assembles the fx options shared by the server and the CLI.
package app

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/renewly/internal/batch"
	"github.com/smallbiznis/renewly/internal/cache"
	"github.com/smallbiznis/renewly/internal/clock"
	"github.com/smallbiznis/renewly/internal/config"
	"github.com/smallbiznis/renewly/internal/history"
	"github.com/smallbiznis/renewly/internal/message"
	"github.com/smallbiznis/renewly/internal/migration"
	"github.com/smallbiznis/renewly/internal/observability"
	"github.com/smallbiznis/renewly/internal/pipeline"
	"github.com/smallbiznis/renewly/pkg/db"
	"go.uber.org/fx"
)

// Core wires configuration, storage and the pipeline without any transport.
var Core = fx.Options(
	config.Module,
	cache.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
	migration.Module,

	batch.Module,
	message.Module,
	history.Module,
	pipeline.Module,
)

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
