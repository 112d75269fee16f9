package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// GetSetting returns the setting of the given type, or nil when unset.
func GetSetting(ctx context.Context, db sqlscan.Querier, settingType SettingType) (*Setting, error) {
	var s Setting
	err := sqlscan.Get(ctx, db, &s, `SELECT type, value, updated_at FROM settings WHERE type = ?`, string(settingType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetSettingValue is GetSetting returning "" when unset.
func GetSettingValue(ctx context.Context, db sqlscan.Querier, settingType SettingType) (string, error) {
	s, err := GetSetting(ctx, db, settingType)
	if err != nil || s == nil {
		return "", err
	}
	return s.Value, nil
}

// UpsertSetting updates the row for settingType in place, inserting it when
// absent. Concurrent writers race and the last one wins.
func UpsertSetting(ctx context.Context, db ExecQuerier, settingType SettingType, value string) error {
	if !settingType.Valid() {
		return fmt.Errorf("unknown setting type %q", settingType)
	}
	existing, err := GetSetting(ctx, db, settingType)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing != nil {
		_, err = db.ExecContext(ctx, `UPDATE settings SET value = ?, updated_at = ? WHERE type = ?`, value, now, string(settingType))
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO settings (type, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(type) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(settingType), value, now)
	return err
}

// ListSettings returns every stored setting.
func ListSettings(ctx context.Context, db sqlscan.Querier) ([]Setting, error) {
	var settings []Setting
	if err := sqlscan.Select(ctx, db, &settings, `SELECT type, value, updated_at FROM settings ORDER BY type`); err != nil {
		return nil, err
	}
	return settings, nil
}
