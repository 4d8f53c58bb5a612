package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minuted/minuted/internal/config"
	"github.com/minuted/minuted/internal/storage"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint a bearer API key for an owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			return fmt.Errorf("--owner is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		token, err := newToken()
		if err != nil {
			return err
		}
		if err := store.CreateAPIKey(token, owner); err != nil {
			return fmt.Errorf("storing api key: %w", err)
		}

		// Only the hash is stored; this is the one chance to copy the token.
		fmt.Println(token)
		printSuccess("Created API key for owner %s", owner)
		return nil
	},
}

func init() {
	apikeyCreateCmd.Flags().String("owner", "", "owner id the key authenticates as")
	apikeyCmd.AddCommand(apikeyCreateCmd)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return "mk_" + hex.EncodeToString(buf), nil
}
