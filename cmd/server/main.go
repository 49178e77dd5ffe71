package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"

	"github.com/visicontrol/visit-scheduler/internal/config"
	"github.com/visicontrol/visit-scheduler/internal/database"
	"github.com/visicontrol/visit-scheduler/internal/handler"
	"github.com/visicontrol/visit-scheduler/internal/live"
	"github.com/visicontrol/visit-scheduler/internal/mailer"
	"github.com/visicontrol/visit-scheduler/internal/queue"
	"github.com/visicontrol/visit-scheduler/internal/repository"
	"github.com/visicontrol/visit-scheduler/internal/router"
	"github.com/visicontrol/visit-scheduler/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and live pushes disabled")
	}

	visitRepo := repository.NewVisitRepo(db)
	notifRepo := repository.NewNotificationRepo(db)
	inmateRepo := repository.NewInmateRepo(db)
	relationRepo := repository.NewRelationRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	pusher := live.NewPusher(rdb)
	notifSvc := service.NewNotificationService(notifRepo, userRepo, visitRepo, pusher, queue.PublishVisitEmail)
	visitSvc := service.NewVisitService(visitRepo, inmateRepo, relationRepo, notifSvc)

	// The mail worker runs in-process, consuming the visit.email queue so
	// SMTP latency never touches request handling.
	m, err := mailer.NewFromEnv()
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}
	if m == nil {
		log.Printf("SMTP not configured; email delivery disabled")
	}
	go func() {
		if err := queue.StartEmailConsumer(m); err != nil {
			log.Printf("email consumer stopped: %v", err)
		}
	}()

	// Daily reminder sweep for tomorrow's visits.
	cr := cron.New()
	if _, err := cr.AddFunc(cfg.ReminderCron, func() {
		created, err := notifSvc.RunReminderSweep(context.Background())
		if err != nil {
			log.Printf("reminder sweep failed: %v", err)
			return
		}
		log.Printf("reminder sweep done, %d reminders created", created)
	}); err != nil {
		log.Fatalf("reminder cron %q: %v", cfg.ReminderCron, err)
	}
	cr.Start()
	defer cr.Stop()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, userRepo, tokenRepo),
		Visits:        handler.NewVisitHandler(visitSvc),
		AdminVisits:   handler.NewAdminVisitHandler(visitSvc, notifSvc),
		Notifications: handler.NewNotificationHandler(notifSvc, rdb),
		Inmates:       handler.NewInmateHandler(inmateRepo, relationRepo),
	}, cfg.JWTSecret, rdb, cfg.RateLimitPerMin)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
