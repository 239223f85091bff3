package gen

import (
	"fmt"

	"campaignhub-botgateway/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Module provides the process-wide id generator. NODE_ID must be unique per
// replica writing to the same database.
var Module = fx.Module("snowflake", fx.Provide(NewSnowflakeNode))

func NewSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
