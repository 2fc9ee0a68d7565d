// Command create-admin creates an admin account or resets an existing
// account with the same email to admin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"perfume-store/internal/accounts"
	"perfume-store/internal/auth"
	"perfume-store/internal/bootstrap"
	"perfume-store/internal/config"
	"perfume-store/internal/logger"
)

func main() {
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password (min 6 characters)")
	name := flag.String("name", "Admin", "display name")
	phone := flag.String("phone", "", "phone number")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "create-admin"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	log := bootstrap.NewLogger(cfg, "create-admin")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open store", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error(ctx, "closing store", err)
		}
	}()

	svc := accounts.NewService(st, auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL), cfg.RefreshTTL, log)
	user, created, err := svc.EnsureAdmin(ctx, accounts.AdminInput{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Phone:    *phone,
	})
	if err != nil {
		log.Error(ctx, "failed to ensure admin", err)
		os.Exit(1)
	}

	action := "updated"
	if created {
		action = "created"
	}
	fmt.Printf("admin %s: %s (%s)\n", action, user.Email, user.ID.Hex())
}
