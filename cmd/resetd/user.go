package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	goReset "github.com/MrEthical07/goReset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage credentials",
	}

	var displayName string
	addCmd := &cobra.Command{
		Use:   "add [identifier]",
		Short: "Create a credential; the secret is read from stdin",
		Long: `Creates a credential for identifier. The secret is read from the first
line of stdin so it never appears in shell history:

  echo 'correct-horse' | resetd user add alice@example.com --name Alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			record, err := addUser(cmd.Context(), args[0], displayName, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", record.Identifier, record.UserID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&displayName, "name", "", "display name")

	userCmd.AddCommand(addCmd)
	return userCmd
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("empty secret on stdin")
	}
	return secret, nil
}

func addUser(ctx context.Context, identifier, displayName, secret string) (goReset.CredentialRecord, error) {
	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return goReset.CredentialRecord{}, err
	}
	defer comps.close()

	record, err := comps.engine.Register(ctx, goReset.RegisterRequest{
		Identifier:  identifier,
		DisplayName: displayName,
		Secret:      secret,
	})
	if err != nil {
		return goReset.CredentialRecord{}, err
	}
	logger.Info("credential created", zap.String("identifier", record.Identifier))
	return record, nil
}
