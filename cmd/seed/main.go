// seed writes wallet bindings, named groups and token holdings into the
// relational store, for local development and demos.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/config"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/store"
)

func main() {
	profileFlag := flag.String("profile", "", "Profile UUID (generated when empty)")
	embedded := flag.String("embedded", "", "Embedded wallet address to bind")
	external := flag.String("external", "", "Comma-separated external wallet addresses to bind")
	collection := flag.String("collection", "", "Collection address for -group and -holdings")
	group := flag.String("group", "", "Named group to register for -collection")
	holdings := flag.String("holdings", "", "Comma-separated owner=balance pairs for -collection")
	flag.Parse()

	if *embedded == "" && *external == "" && *group == "" && *holdings == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed [-profile <uuid>] [-embedded <addr>] [-external <addr,...>] [-collection <addr> [-group <name>] [-holdings <owner=n,...>]]")
		fmt.Fprintln(os.Stderr, "  Writes to DATABASE_URL when set, SQLITE_PATH otherwise")
		os.Exit(1)
	}

	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("store open failed")
	}
	defer data.Close()

	if *embedded != "" || *external != "" {
		profileID := uuid.New()
		if *profileFlag != "" {
			if profileID, err = uuid.Parse(*profileFlag); err != nil {
				logger.Fatal().Err(err).Msg("invalid profile id")
			}
		}

		var bindings []models.WalletBinding
		if *embedded != "" {
			bindings = append(bindings, models.WalletBinding{ProfileID: profileID, WalletAddress: *embedded, Kind: models.WalletEmbedded})
		}
		for _, addr := range splitList(*external) {
			bindings = append(bindings, models.WalletBinding{ProfileID: profileID, WalletAddress: addr, Kind: models.WalletExternal})
		}
		for _, b := range bindings {
			if _, err := models.ParseAddress(b.WalletAddress); err != nil {
				logger.Fatal().Err(err).Str("wallet", b.WalletAddress).Msg("invalid wallet")
			}
			if err := data.BindWallet(ctx, b); err != nil {
				logger.Fatal().Err(err).Str("wallet", b.WalletAddress).Msg("bind failed")
			}
		}
		logger.Info().Str("profile_id", profileID.String()).Int("wallets", len(bindings)).Msg("wallets bound")
	}

	if *group != "" || *holdings != "" {
		if _, err := models.ParseAddress(*collection); err != nil {
			logger.Fatal().Err(err).Msg("-collection must be a valid address")
		}
	}

	if *group != "" {
		if err := data.CreateGroup(ctx, *group, *collection); err != nil {
			logger.Fatal().Err(err).Msg("create group failed")
		}
		logger.Info().Str("group_id", *group).Str("collection", models.NormalizeAddress(*collection)).Msg("group registered")
	}

	for _, pair := range splitList(*holdings) {
		owner, balStr, ok := strings.Cut(pair, "=")
		if !ok {
			logger.Fatal().Str("pair", pair).Msg("holdings must be owner=balance")
		}
		balance, err := strconv.ParseInt(balStr, 10, 64)
		if err != nil || balance < 0 {
			logger.Fatal().Str("pair", pair).Msg("invalid balance")
		}
		if _, err := models.ParseAddress(owner); err != nil {
			logger.Fatal().Err(err).Str("owner", owner).Msg("invalid owner")
		}
		if err := data.SetHolding(ctx, *collection, owner, balance); err != nil {
			logger.Fatal().Err(err).Msg("set holding failed")
		}
		logger.Info().Str("owner", owner).Int64("balance", balance).Msg("holding recorded")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.DataStore, error) {
	if cfg.DatabaseURL != "" {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return store.NewSQLiteStore(ctx, cfg.SQLitePath)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
