// Command createsuperuser creates an admin account from the terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

func main() {
	email := flag.String("email", "", "superuser email")
	username := flag.String("username", "", "superuser username")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	reader := bufio.NewReader(os.Stdin)
	if *email == "" {
		if *email, err = promptLine(reader, os.Stdout, "Email address"); err != nil {
			log.Fatalf("read email: %v", err)
		}
	}
	if *username == "" {
		if *username, err = promptLine(reader, os.Stdout, "Username"); err != nil {
			log.Fatalf("read username: %v", err)
		}
	}
	password, err := promptPassword(os.Stdout)
	if err != nil {
		log.Fatalf("read password: %v", err)
	}

	ctx := context.Background()
	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open account store", zap.Error(err))
	}
	defer store.Close()

	accounts := service.NewAccountService(service.AccountDependencies{
		Store:  store.Store,
		Hasher: auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Logger: logger,
	})

	user, err := accounts.CreateSuperuser(ctx, *email, *username, password)
	if err != nil {
		if de := apperrors.ToDomainError(err); de.HTTPStatus < 500 {
			fmt.Fprintln(os.Stderr, "Error:", de.Message)
			os.Exit(1)
		}
		logger.Fatal("create superuser", zap.Error(err))
	}
	fmt.Printf("Superuser %q created with id %d.\n", user.Username, user.ID)
}
