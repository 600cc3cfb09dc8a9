package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/auth"
	"github.com/brandon/mcp-mailbox/internal/config"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file (default: $CONFIG_FILE)")
	noBrowser  = flag.Bool("no-browser", false, "Only print the authorization URL")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	if err := run(logger); err != nil {
		logger.WithError(err).Error("Setup failed")
		os.Exit(1)
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateOAuth(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.IMAP.User == "" {
		logger.Warn("IMAP_USER is not set; the cached account will have no username")
	}

	redirect, err := url.Parse(cfg.OAuth.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}

	store, err := auth.NewStore(cfg.TokenStore.Backend, cfg.TokenStore.Path, cfg.TokenStore.KeyringDir)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	provider := auth.NewProvider(cfg, store, logger)

	state := uuid.New().String()
	handler := newCallbackHandler(provider, state, logger)

	ln, err := net.Listen("tcp", listenAddr(redirect))
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", redirect.Host, err)
	}

	mux := http.NewServeMux()
	mux.Handle(callbackPath(redirect), handler)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx) //nolint:errcheck
	}()

	authURL := provider.AuthorizationURL(state)
	fmt.Printf("Open this URL in your browser and sign in:\n\n%s\n\nWaiting for the redirect to %s ...\n", authURL, cfg.OAuth.RedirectURL)
	if !*noBrowser {
		if err := browser.OpenURL(authURL); err != nil {
			logger.WithError(err).Warn("Could not open a browser; open the URL manually")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-handler.done:
		if err != nil {
			return err
		}
		fmt.Println("Authentication successful. The MCP server can now access the mailbox.")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("callback server failed: %w", err)
	case sig := <-sigChan:
		return fmt.Errorf("interrupted by %s", sig)
	}
}

// listenAddr is the redirect URI's host:port, defaulting the port from the scheme
func listenAddr(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

func callbackPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
