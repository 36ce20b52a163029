package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/database"
	"github.com/lpkmns/nihongo-exam/internal/logger"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	// Hashing needs no Redis; sessions are never issued here.
	adminRepo := repository.NewAdminRepository(pool)
	authService := service.NewAuthService(cfg, nil, adminRepo)
	adminService := service.NewAdminService(adminRepo, authService)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin User ===")

	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		fmt.Println("Error: Username must be at least 3 characters")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		return
	}

	fmt.Print("Confirm Password: ")
	byteConfirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	if string(bytePassword) != string(byteConfirm) {
		fmt.Println("Error: Passwords do not match")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	admin, err := adminService.Create(ctx, username, string(bytePassword))
	switch {
	case errors.Is(err, service.ErrWeakPassword):
		fmt.Println("Error: Password needs at least 8 characters with upper and lower case letters and a digit")
		return
	case errors.Is(err, repository.ErrDuplicateUsername):
		fmt.Printf("Error: Username '%s' is already taken\n", username)
		return
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' created with ID: %d\n", admin.Username, admin.ID)
}
