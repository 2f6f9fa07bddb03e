package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"gorm.io/gorm"
)

// snapshotQueryTimeout bounds the settings refresh query.
const snapshotQueryTimeout = 10 * time.Second

var (
	snapshotMu sync.RWMutex
	snapshot   map[string]json.RawMessage
)

// RefreshDBConfig reloads the in-process settings snapshot from the database.
func RefreshDBConfig(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("settings: nil connection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotQueryTimeout)
	defer cancel()

	var rows []models.Setting
	if errFind := conn.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load snapshot: %w", errFind)
	}

	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		if row.Key == "" || len(row.Value) == 0 {
			continue
		}
		next[row.Key] = json.RawMessage(row.Value)
	}

	snapshotMu.Lock()
	snapshot = next
	snapshotMu.Unlock()
	return nil
}

// DBConfigValue returns the raw JSON value for a settings key from the
// current snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	value, ok := snapshot[key]
	return value, ok
}
