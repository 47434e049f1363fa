package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nursemate/internal/pkg/jwt"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development bearer token",
	Long: `Issue an HS256 bearer token signed with auth.jwt_secret, for calling the
stream endpoint locally. Production deployments verify tokens from their identity
provider and never need this command.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	flags := tokenCmd.Flags()
	flags.StringP("user", "u", "", "user id (sub / user_id claim)")
	flags.String("username", "", "optional username claim")
	flags.Duration("expiry", 0, "token lifetime (default: auth.token_expiry)")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (env: NURSEMATE_AUTH_JWT_SECRET)")
	}

	userID, _ := cmd.Flags().GetString("user")
	username, _ := cmd.Flags().GetString("username")
	expiry, _ := cmd.Flags().GetDuration("expiry")
	if expiry <= 0 {
		expiry = cfg.Auth.TokenExpiry
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	token, err := jwt.NewIssuer(cfg.Auth.JWTSecret, expiry).GenerateToken(userID, username)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
