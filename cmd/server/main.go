package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/form-builder/internal/auth"
	"github.com/iliyamo/form-builder/internal/config"
	"github.com/iliyamo/form-builder/internal/database"
	"github.com/iliyamo/form-builder/internal/handler"
	"github.com/iliyamo/form-builder/internal/queue"
	"github.com/iliyamo/form-builder/internal/repository"
	"github.com/iliyamo/form-builder/internal/router"
	"github.com/iliyamo/form-builder/internal/service"
)

func main() {
	// Load .env when present; real deployments set the environment
	// directly and the file is absent.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Redis is optional; a nil client disables caching and rate
	// limiting instead of failing startup.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	templates := repository.NewTemplateRepo(db)
	responses := repository.NewResponseRepo(db)

	templateSvc := service.NewTemplateService(templates, users)
	responseSvc := service.NewResponseService(templates, responses)

	resolver := auth.NewResolver(cfg.JWTSecret, users)

	authH := handler.NewAuthHandler(cfg, users, tokens, templates)
	templateH := handler.NewTemplateHandler(templateSvc)
	responseH := handler.NewResponseHandler(responseSvc)
	adminH := handler.NewAdminHandler(users, tokens)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, resolver)
	router.RegisterTemplates(e, templateH, responseH, resolver, rdb,
		config.LoadCacheConfig(), config.LoadRateLimitConfig())
	router.RegisterAdmin(e, adminH, resolver)

	// Background consumer writing the submission notification trail.
	go func() {
		if err := queue.StartResponseConsumer(); err != nil {
			log.Printf("response consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
