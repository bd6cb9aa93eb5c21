package main

import (
	"context"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gigspace/internal/adapter/backend"
	"gigspace/internal/adapter/tui"
	"gigspace/internal/infrastructure/channel"
	"gigspace/internal/infrastructure/identity"
	"gigspace/internal/usecase"
	"gigspace/pkg/config"
	"gigspace/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The terminal owns stdout; keep logs out of the rendered UI.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	logger.SetOutput(logFile)

	localUserID, err := identity.UserIDFromToken(cfg.BearerToken)
	if err != nil {
		log.Fatalf("Failed to resolve local user: %v", err)
	}

	ctx := context.Background()

	channelClient := channel.NewClient(cfg.ChannelURL, cfg.BearerToken, cfg.AckTimeout)
	if err := channelClient.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to event channel: %v", err)
	}
	defer channelClient.Close()

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BearerToken, localUserID)

	store := usecase.NewConversationStore(localUserID, backendClient, channelClient)
	if err := store.Start(ctx); err != nil {
		log.Fatalf("Failed to start conversation store: %v", err)
	}
	defer store.Stop()

	presence := usecase.NewPresenceTracker(channelClient)

	program := tea.NewProgram(
		tui.New(store, presence, backendClient),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		log.Fatalf("Messenger exited with error: %v", err)
	}
}
