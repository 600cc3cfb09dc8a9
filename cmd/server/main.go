package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/internal/audit"
	"github.com/brandon/mcp-mailbox/internal/auth"
	"github.com/brandon/mcp-mailbox/internal/config"
	"github.com/brandon/mcp-mailbox/internal/email"
	"github.com/brandon/mcp-mailbox/internal/mcp"
	"github.com/brandon/mcp-mailbox/internal/tools"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
	configPath  = flag.String("config", "", "Path to a YAML config file (default: $CONFIG_FILE)")
	journalN    = flag.Int("journal", 0, "Print the N most recent journaled delete/mark-read requests and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mcp-mailbox version %s\n", version)
		os.Exit(0)
	}

	// stdout carries the protocol, so logs go to stderr
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if *journalN > 0 {
		if err := showJournal(cfg.AuditDBPath, *journalN, logger); err != nil {
			logger.WithError(err).Fatal("Failed to read audit journal")
		}
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"imap":  cfg.IMAPAddr(),
		"user":  cfg.IMAP.User,
		"store": cfg.TokenStore.Backend,
	}).Info("Starting MCP Mailbox Server")

	store, err := auth.NewStore(cfg.TokenStore.Backend, cfg.TokenStore.Path, cfg.TokenStore.KeyringDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open token store")
	}
	provider := auth.NewProvider(cfg, store, logger)

	mailbox := email.NewMailbox(provider, email.NewTLSDialer(cfg, logger), logger)

	if cfg.AuditDBPath != "" {
		journal, err := audit.Open(cfg.AuditDBPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open audit journal")
		}
		defer journal.Close()
		mailbox.SetJournal(journal)
	}

	server := mcp.NewServer(tools.NewRegistry(mailbox, logger), logger, version)
	server.SetOperationTimeout(cfg.OperationTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("Server error")
		}
	}

	logger.Info("Shutting down MCP Mailbox Server")
}

func showJournal(path string, limit int, logger *logrus.Logger) error {
	if path == "" {
		return fmt.Errorf("audit journal is disabled (AUDIT_DB_PATH is empty)")
	}
	journal, err := audit.Open(path, logger)
	if err != nil {
		return err
	}
	defer journal.Close()
	return printJournal(context.Background(), journal, limit, os.Stdout)
}
