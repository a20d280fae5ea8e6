package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/threadline/internal/adapters/driving/httpapi"
)

var tokenCmd = &cobra.Command{
	Use:   "token [app-id]",
	Short: "Mint a bearer token for the trigger API",
	Long: `Sign an HS256 token for /api routes with server.jwt-secret. The token
carries the tenant as app_id and the user as sub.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

var (
	tokenUser string
	tokenTTL  time.Duration
)

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "cli", "User recorded on imports started with the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if currentApp == nil {
		return errors.New("configuration not loaded")
	}

	now := time.Now()
	claims := httpapi.Claims{
		AppID: args[0],
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  tokenUser,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenTTL))
	}

	token, err := httpapi.NewToken(currentApp.Config.Server.JWTSecret, claims)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	cmd.Println(token)
	return nil
}
