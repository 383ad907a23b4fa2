package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/content"
)

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Issue an access token for an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		if cfg.AuthHMACSecret == "" {
			return errors.New("AUTH_HMAC_SECRET is not set")
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.TokenTTL
		}

		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		u, err := content.NewSQLStore(dbh).GetUserByEmail(cmd.Context(), strings.ToLower(args[0]))
		if errors.Is(err, content.ErrNotFound) {
			return fmt.Errorf("no account for %s", args[0])
		}
		if err != nil {
			return err
		}
		tok, err := auth.NewAuthService(cfg.AuthHMACSecret, ttl).IssueJWT(u.UID, u.Email)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to TOKEN_TTL)")
}
