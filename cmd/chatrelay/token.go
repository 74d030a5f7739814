package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/chatrelay/internal/adapters/auth"
	"github.com/PabloGalante/chatrelay/internal/config"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for the jwt auth backend",
		Long: `Mint an HS256 token signed with JWT_SECRET. The server accepts it when
AUTH_BACKEND=jwt; its subject becomes the caller's user id.`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}
	cmd.Flags().Duration("ttl", 0, "token lifetime (default JWT_TTL)")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return fmt.Errorf("getting ttl flag: %w", err)
	}
	if ttl == 0 {
		ttl = cfg.JWTTTL
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, ttl)
	if err != nil {
		return err
	}
	token, expires, err := issuer.Issue(domain.UserID(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
	return nil
}
