package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"exposureshield/internal/api/handler/v1handler"
	"exposureshield/internal/config"
	"exposureshield/pkg/cache/memory"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// checkCommand evaluates a single address from the command line with the
// same sources the API uses. The password, if any, is read from stdin so it
// never shows up in the shell history or the process list.
func checkCommand(cfg *config.Config) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluates the exposure of one email address and prints the verdict",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			query := domain.ExposureQuery{Email: strings.TrimSpace(email)}
			if passwordStdin {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					logger.Fatal(ctx, "could not read password from stdin", zap.Error(err))
				}
				query.Password = strings.TrimRight(line, "\r\n")
			}

			store := memory.New(memory.Options{MaxEntriesPerShard: cfg.Cache.MaxEntriesPerShard})
			verdict, err := newAggregator(ctx, cfg, store).Evaluate(ctx, query)
			if err != nil {
				logger.Fatal(ctx, "could not evaluate exposure", zap.Error(err))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(v1handler.DomainVerdictToResponse(verdict)); err != nil {
				logger.Fatal(ctx, "could not print verdict", zap.Error(err))
			}
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address to check")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read a password to check from stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
