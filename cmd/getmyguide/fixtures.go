package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"getmyguide/internal/app/commands"
	guidesapp "getmyguide/internal/app/handlers/guides"
	"getmyguide/internal/domain/user"
)

// fixtureActor seeds guides through the regular admin command path.
var fixtureActor = user.Actor{ID: "system:fixtures", Role: user.RoleAdmin}

type guideFixture struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	ServiceLocations []string `json:"service_locations"`
	Languages        []string `json:"languages"`
}

func loadGuideFixtures(ctx context.Context, bus commands.Bus, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("guide fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("guide fixtures file empty", "path", path)
		return nil
	}

	var fixtures []guideFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		cmd := guidesapp.UpsertGuideCommand{
			Actor:            fixtureActor,
			GuideID:          fx.ID,
			Name:             fx.Name,
			Email:            fx.Email,
			ServiceLocations: append([]string(nil), fx.ServiceLocations...),
			Languages:        append([]string(nil), fx.Languages...),
		}
		if _, err := commands.Dispatch[guidesapp.UpsertGuideCommand, *guidesapp.Profile](ctx, bus, cmd); err != nil {
			logger.Error("fixture guide rejected", "guide_id", fx.ID, "error", err)
			continue
		}
		logger.Info("guide fixture imported", "guide_id", fx.ID)
	}
	return nil
}

func defaultGuideFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "guides.json"),
		filepath.Join("config", "guides.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
