// Package main bootstraps the governance core: configuration, tracing, the
// snapshot store, the approval engine, and the registry. Command dispatch
// and the concrete directory client attach from outside this module.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/concordia-bot/concordia/internal/directory"
	"github.com/concordia-bot/concordia/internal/guild/approval"
	"github.com/concordia-bot/concordia/internal/guild/registry"
	"github.com/concordia-bot/concordia/internal/guild/store/file"
	"github.com/concordia-bot/concordia/internal/platform/config"
	"github.com/concordia-bot/concordia/internal/platform/otel"
)

type envConfig struct {
	FounderRoleID     string   `env:"CONCORDIA_FOUNDER_ROLE,required"`
	PoliticsChannelID string   `env:"CONCORDIA_POLITICS_CHANNEL"`
	CommandsChannelID string   `env:"CONCORDIA_COMMANDS_CHANNEL"`
	ReservedNames     []string `env:"CONCORDIA_RESERVED_NAMES" envSeparator:","`
	StatePath         string   `env:"CONCORDIA_STATE_PATH"     envDefault:"config.json"`
}

// newDirectory builds the directory client. The default fails fast: the
// concrete client lives outside the governance core, and embedding builds
// override this hook to link theirs in.
var newDirectory = func(ctx context.Context) (directory.Directory, error) {
	return nil, errors.New("no directory client linked")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg envConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("load configuration: %v", err)
	}

	shutdown, err := otel.Setup(ctx, "concordia")
	if err != nil {
		config.Exitf("initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("flush traces: %v", err)
		}
	}()

	configStore, err := file.Open(cfg.StatePath)
	if err != nil {
		config.Exitf("open config store at %s: %v", cfg.StatePath, err)
	}
	snap, err := configStore.Load(ctx)
	if err != nil {
		config.Exitf("load config store: %v", err)
	}
	log.Printf("config store ready: revision %d, %d factions, %d alliances, %d history entries",
		snap.Revision, len(snap.Current.Factions), len(snap.Current.Alliances), len(snap.Historic))

	dir, err := newDirectory(ctx)
	if err != nil {
		config.Exitf("initialize directory client: %v", err)
	}

	tickets, err := approval.LoadTicketIssuerFromEnv(nil)
	if err != nil {
		config.Exitf("load ticket issuer: %v", err)
	}
	if tickets == nil {
		log.Printf("approval tickets disabled: no signing key configured")
	}
	approvals := approval.NewEngine(tickets)

	if _, err := registry.New(dir, configStore, approvals, registry.LogAnnouncer{}, registry.Settings{
		FounderRoleID: cfg.FounderRoleID,
		ReservedNames: cfg.ReservedNames,
	}); err != nil {
		config.Exitf("initialize registry: %v", err)
	}

	log.Printf("governance core ready; politics channel %q, commands channel %q",
		cfg.PoliticsChannelID, cfg.CommandsChannelID)

	<-ctx.Done()
	log.Printf("shutdown signal received")
}
