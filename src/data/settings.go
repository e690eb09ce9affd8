package data

import (
	"strings"
	"sync"

	"gorm.io/gorm"
)

// Setting is one row of the settings table. Rows override environment
// variables of the same meaning.
type Setting struct {
	ID     uint16 `gorm:"primaryKey"`
	Name   string `gorm:"size:64;not null;uniqueIndex"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null;default:1"`
}

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings replaces the cache with the active rows of the settings table.
func LoadSettings(db *gorm.DB) error {
	var settings []Setting
	if err := db.Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	cache := make(map[string]string, len(settings))
	for _, s := range settings {
		cache[strings.TrimSpace(s.Name)] = s.Value
	}

	settingsMu.Lock()
	settingsCache = cache
	settingsMu.Unlock()
	return nil
}

// GetSetting retrieves a setting value from cache (call LoadSettings first)
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// ResetSettings empties the cache so only environment values apply.
func ResetSettings() {
	settingsMu.Lock()
	settingsCache = nil
	settingsMu.Unlock()
}
