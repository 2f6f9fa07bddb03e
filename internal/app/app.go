package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ourstreet-app/ourstreet-core/internal/audit"
	"github.com/ourstreet-app/ourstreet-core/internal/config"
	"github.com/ourstreet-app/ourstreet-core/internal/db"
	admin "github.com/ourstreet-app/ourstreet-core/internal/http/api/admin"
	"github.com/ourstreet-app/ourstreet-core/internal/models"
	"github.com/ourstreet-app/ourstreet-core/internal/ratelimit"
	"github.com/ourstreet-app/ourstreet-core/internal/security"
	"github.com/ourstreet-app/ourstreet-core/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the security core HTTP service.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if errRefresh := settings.RefreshDBConfig(conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("app: settings snapshot load failed, using defaults")
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if jwtConfig.Secret == "" {
		return fmt.Errorf("app: JWT secret is not configured")
	}

	if errSeed := seedAdminUser(conn, config.LoadAdminBootstrap(configPath)); errSeed != nil {
		return errSeed
	}

	recorder := audit.NewRecorder(conn, nowUTC)
	manager := ratelimit.NewManager(ratelimit.LoadSettingsConfig, nowUTC, nil)
	manager.Start()
	defer manager.Stop()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	admin.RegisterRoutes(engine, conn, jwtConfig, manager, recorder)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.WithError(errShutdown).Error("app: server shutdown")
		}
	}()

	log.Infof("starting server on %s with config=%s", srv.Addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// seedAdminUser creates the bootstrap administrator account when credentials
// are configured and no account exists for that email yet.
func seedAdminUser(conn *gorm.DB, bootstrap config.AdminBootstrap) error {
	if bootstrap.Email == "" || bootstrap.Password == "" {
		return nil
	}

	var existing models.User
	errFind := conn.Where("email = ?", bootstrap.Email).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("app: check admin user: %w", errFind)
	}

	hashed, errHash := security.HashPassword(bootstrap.Password)
	if errHash != nil {
		return fmt.Errorf("app: hash admin password: %w", errHash)
	}

	now := nowUTC()
	user := models.User{
		Email:     bootstrap.Email,
		Name:      "Administrator",
		Password:  hashed,
		Role:      models.RoleAdmin,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		return fmt.Errorf("app: create admin user: %w", errCreate)
	}
	log.Infof("seeded bootstrap admin account %s", bootstrap.Email)
	return nil
}

// nowUTC returns the current UTC time.
func nowUTC() time.Time { return time.Now().UTC() }
