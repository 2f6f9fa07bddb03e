package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ourstreet-app/ourstreet-core/internal/models"
	internalsettings "github.com/ourstreet-app/ourstreet-core/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureSiteNameSetting(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureSiteNameSetting seeds the site name setting when absent.
func ensureSiteNameSetting(conn *gorm.DB) error {
	var existing models.Setting
	errFind := conn.Where("key = ?", internalsettings.SiteNameKey).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: load site name setting: %w", errFind)
	}

	value, errMarshal := json.Marshal(internalsettings.DefaultSiteName)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal site name: %w", errMarshal)
	}
	record := models.Setting{
		Key:   internalsettings.SiteNameKey,
		Value: datatypes.JSON(value),
	}
	if errCreate := conn.Create(&record).Error; errCreate != nil {
		return fmt.Errorf("db: seed site name: %w", errCreate)
	}
	return nil
}
