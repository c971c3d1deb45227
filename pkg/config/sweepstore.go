package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// SweepSource supplies the sweep-level parameters for admission. The
// values are read once per admission and frozen into the experiment, so
// later changes to the source never affect a running experiment.
type SweepSource interface {
	// Load returns the current sweep parameters.
	Load(ctx context.Context) (*SweepDefaults, error)
}

// StaticSweepSource serves the sweep parameters loaded from YAML.
type StaticSweepSource struct {
	defaults *SweepDefaults
}

// NewStaticSweepSource creates a source that always returns the given
// parameters.
func NewStaticSweepSource(defaults *SweepDefaults) *StaticSweepSource {
	return &StaticSweepSource{defaults: defaults}
}

// Load returns a copy of the static parameters.
func (s *StaticSweepSource) Load(_ context.Context) (*SweepDefaults, error) {
	out := *s.defaults
	return &out, nil
}

// RedisSweepSource reads sweep parameters from a Redis hash so a sweep
// controller can retune budgets between experiments without a redeploy.
// Fields absent from the hash keep the static value; the hash stores
// strings, so every field is parsed explicitly.
type RedisSweepSource struct {
	client *redis.Client
	key    string
	base   *SweepDefaults
}

// NewRedisSweepSource creates a source backed by the given Redis hash key.
func NewRedisSweepSource(client *redis.Client, key string, base *SweepDefaults) *RedisSweepSource {
	return &RedisSweepSource{client: client, key: key, base: base}
}

// Load fetches the hash and overlays it on the static defaults.
func (s *RedisSweepSource) Load(ctx context.Context) (*SweepDefaults, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep parameters from redis key %q: %w", s.key, err)
	}

	out := *s.base
	if len(fields) == 0 {
		slog.Debug("sweep hash empty, using static defaults", "key", s.key)
		return &out, nil
	}

	for field, raw := range fields {
		target, ok := sweepField(&out, field)
		if !ok {
			slog.Warn("ignoring unknown sweep parameter", "key", s.key, "field", field)
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("sweep parameter %q has non-integer value %q: %w", field, raw, err)
		}
		*target = value
	}
	return &out, nil
}

// sweepField maps a hash field name to the struct field it configures.
func sweepField(d *SweepDefaults, name string) (*int, bool) {
	switch name {
	case "recall_interval":
		return &d.RecallInterval, true
	case "max_recall_actions":
		return &d.MaxRecallActions, true
	case "max_moves":
		return &d.MaxMoves, true
	case "max_duration_minutes":
		return &d.MaxDurationMinutes, true
	case "max_actions_per_turn":
		return &d.MaxActionsPerTurn, true
	case "vision_range":
		return &d.VisionRange, true
	default:
		return nil, false
	}
}
