package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/parkplan/internal/config"
	"github.com/dyluth/parkplan/internal/printer"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// connectEvents opens the run-event client configured under events:. The caller
// must close the client.
func connectEvents(ctx context.Context, cfg *config.PlannerConfig) (*blackboard.Client, error) {
	if cfg.Events == nil || cfg.Events.RedisURL == "" {
		return nil, printer.Error(
			"run events are not configured",
			"Publishing and watching run events require a Redis server.",
			[]string{"Add to parkplan.yml:\n  events:\n    redis_url: redis://localhost:6379/0\n    instance: default"},
		)
	}

	client, err := blackboard.NewClientFromURL(cfg.Events.RedisURL, cfg.Events.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create event client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Events.RedisURL),
			map[string]string{"Instance": cfg.Events.Instance},
			[]string{"Check that Redis is running and events.redis_url is correct."},
		)
	}
	return client, nil
}
