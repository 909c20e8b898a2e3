package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/oauth2"

	"stylesync/internal/api"
	"stylesync/internal/collections"
	"stylesync/internal/config"
	"stylesync/internal/coordination"
	"stylesync/internal/eventbus"
	"stylesync/internal/history"
	"stylesync/internal/identity"
	"stylesync/internal/ui"
	"stylesync/internal/wishlist"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&configPath, "c", "", "Path to config file (shorthand)")
	flag.Parse()

	// Load configuration
	configSvc := config.NewConfigService()
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = configSvc.LoadFromPath(configPath)
	} else {
		cfg, err = configSvc.Load()
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Could not open log file: %v", err)
	} else {
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Create the event bus and coordination context for this session
	bus := eventbus.New()
	coord := coordination.NewContextWithBus(bus)
	defer coord.Close()

	// Identity provider: token file next to the config, refreshed against
	// the backend's auth endpoint
	ident := identity.NewTokenFile(cfg.TokenFile, refreshFunc(cfg.API.BaseURL))

	// Request client; a failed refresh records where to come back to and
	// lets every subscriber know re-authentication is needed
	var currentLocation string
	client := api.New(cfg.API.BaseURL, ident,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSeconds)*time.Second),
		api.WithLocation(func() string { return currentLocation }),
		api.WithReauthHandler(func(returnTo string) {
			log.Printf("Credential refresh failed, re-auth required (return to %q)", returnTo)
			bus.Publish(eventbus.ReauthRequiredEvent{ReturnTo: returnTo})
		}),
	)

	// Entity managers
	wl := wishlist.NewManager(client, coord)
	defer wl.Close()
	hist := history.NewManager(client, coord)
	defer hist.Close()
	cols := collections.NewManager(client, coord)
	defer cols.Close()

	// Create the UI model
	uiModel := ui.NewModel(coord, wl, hist, cols, cfg.API.PageSize)

	// Create Bubble Tea program
	p := tea.NewProgram(uiModel, tea.WithAltScreen())

	// Forward bus events into the UI so other instances' changes repaint
	eventChan := make(chan eventbus.DomainEvent, 100)
	unsub := bus.SubscribeAll(func(e eventbus.DomainEvent) {
		select {
		case eventChan <- e:
		default:
			log.Println("Event channel full, dropping event")
		}
	})
	defer unsub()

	go func() {
		for event := range eventChan {
			p.Send(ui.EventMsg{Event: event})
		}
	}()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	// Run the UI
	if _, err := p.Run(); err != nil {
		log.Printf("Error running program: %v", err)
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}

	close(eventChan)
}

// refreshFunc exchanges a refresh token at the backend's auth endpoint.
func refreshFunc(baseURL string) identity.RefreshFunc {
	return func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			baseURL+"/api/auth/refresh", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("refresh failed with status %d", resp.StatusCode)
		}

		var payload struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int    `json:"expires_in"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, err
		}

		tok := &oauth2.Token{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
		}
		if tok.RefreshToken == "" {
			tok.RefreshToken = refreshToken
		}
		if payload.ExpiresIn > 0 {
			tok.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		}
		return tok, nil
	}
}
