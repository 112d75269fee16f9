package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/elee1766/pagepilot/src/models"
	"github.com/elee1766/pagepilot/src/storage"
)

// SettingsView is the settings as shown to a UI. The API key itself is
// never returned.
type SettingsView struct {
	APIKeySet bool   `json:"apiKeySet"`
	Model     string `json:"model"`
}

// GetSettings reports whether a key is stored and which model is selected.
func (o *Orchestrator) GetSettings(ctx context.Context) (*SettingsView, error) {
	apiKey, err := storage.GetSettingValue(ctx, o.db.DB(), storage.SettingAPIKey)
	if err != nil {
		return nil, err
	}
	model, err := storage.GetSettingValue(ctx, o.db.DB(), storage.SettingModel)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = models.DefaultModel
	}
	return &SettingsView{APIKeySet: strings.TrimSpace(apiKey) != "", Model: model}, nil
}

// SaveSetting upserts one setting. Concurrent saves race and the last one
// wins.
func (o *Orchestrator) SaveSetting(ctx context.Context, settingType storage.SettingType, value string) error {
	if !settingType.Valid() {
		return fmt.Errorf("unknown setting type %q", settingType)
	}
	if err := storage.UpsertSetting(ctx, o.db.DB(), settingType, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("failed to save %s: %w", settingType, err)
	}
	o.logger.Info("setting saved", "type", settingType)
	if o.onSaved != nil {
		o.onSaved(settingType)
	}
	return nil
}
