package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// issue-token mints a bearer token signed with JWT_SECRET for local testing.
// Real tokens are issued by the identity service.
func main() {
	var (
		tokenType   string
		userID      int
		roleID      int
		permissions string
	)
	flag.StringVar(&tokenType, "type", string(service.TokenTypeParticipant), "Token type: participant or admin")
	flag.IntVar(&userID, "user", 0, "User ID (required)")
	flag.IntVar(&roleID, "role", 0, "Role ID")
	flag.StringVar(&permissions, "perms", strings.Join([]string{
		string(model.PermissionSessionsRead),
		string(model.PermissionSessionsWrite),
		string(model.PermissionSystemRead),
	}, ","), "Comma-separated permissions for admin tokens")
	flag.Parse()

	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	auth := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)

	var token string
	switch service.TokenType(tokenType) {
	case service.TokenTypeParticipant:
		if roleID <= 0 {
			fmt.Fprintln(os.Stderr, "Error: participant tokens need -role")
			os.Exit(2)
		}
		token, err = auth.GenerateParticipantToken(userID, roleID)
	case service.TokenTypeAdmin:
		token, err = auth.GenerateAdminToken(userID, roleID, splitPermissions(permissions))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", tokenType)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

func splitPermissions(raw string) []string {
	var perms []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}
