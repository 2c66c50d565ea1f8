// Command mint-token issues development JWTs signed with the shared secret,
// standing in for the identity provider on local setups.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Mint Development Token ===")

	// Secret
	if os.Getenv("JWT_SECRET") == "" {
		fmt.Print("Enter JWT secret (empty for config default): ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after secret input
		if err != nil {
			fmt.Println("Error reading secret")
			os.Exit(1)
		}
		if s := strings.TrimSpace(string(secret)); s != "" {
			cfg.JWTSecret = s
		}
	}

	// Role
	fmt.Print("Enter Role [student/teacher] (default student): ")
	roleStr, _ := reader.ReadString('\n')
	role := service.Role(strings.TrimSpace(roleStr))
	switch role {
	case "":
		role = service.RoleStudent
	case service.RoleStudent, service.RoleTeacher:
	default:
		fmt.Println("Error: Role must be student or teacher")
		os.Exit(1)
	}

	// User ID
	fmt.Print("Enter User ID (empty for a new UUID): ")
	idStr, _ := reader.ReadString('\n')
	userID := uuid.New()
	if idStr = strings.TrimSpace(idStr); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			fmt.Println("Error: User ID must be a UUID")
			os.Exit(1)
		}
		userID = id
	}

	// TTL
	fmt.Print("Enter TTL in hours (default 24): ")
	ttlStr, _ := reader.ReadString('\n')
	hours := 24
	if ttlStr = strings.TrimSpace(ttlStr); ttlStr != "" {
		h, err := strconv.Atoi(ttlStr)
		if err != nil || h < 1 {
			fmt.Println("Error: TTL must be a positive number")
			os.Exit(1)
		}
		hours = h
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg).IssueToken(userID, role, time.Duration(hours)*time.Hour)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nUser ID: %s\nRole:    %s\nToken:   %s\n", userID, role, token)
}
