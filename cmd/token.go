package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/auth"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for auth.mode jwt",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	AddUserFlag(tokenCmd, &tokenUser)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.ttl)")
	if err := tokenCmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	if cfg.Auth.Mode != "jwt" {
		return fmt.Errorf("auth.mode is %q; tokens are only verified in jwt mode", cfg.Auth.Mode)
	}
	issuer, err := auth.NewJWT(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(tokenUser, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
