package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"marks-go/internal/config"
	"marks-go/internal/database"
	"marks-go/internal/marks"
)

// MarksApp is the application layer between the CLI and MarksService.
// It constructs all dependencies from config and manages the store and
// log-file lifecycle on Close.
type MarksApp struct {
	cfg     *config.Config
	store   marks.Store
	service *marks.MarksService
	logFile *os.File
}

// NewMarksApp creates a fully wired MarksApp from the given config.
// operation identifies the CLI command being run (e.g. "MoveFolder",
// "ShareCollection") and tags every log line. The caller must call Close
// when done.
func NewMarksApp(cfg *config.Config, operation string) (*MarksApp, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + " " + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := marks.NewMarksService(store, &slogAdapter{l: logger},
		marks.RealClock{}, marks.UUIDGenerator{}, marks.RandomTokenGenerator{})

	return &MarksApp{
		cfg:     cfg,
		store:   store,
		service: svc,
		logFile: logFile,
	}, nil
}

// Service exposes the engine service for the CLI commands.
func (a *MarksApp) Service() *marks.MarksService {
	return a.service
}

// ResolveUser maps an email address (as used by the CLI's --as flag) to
// the corresponding user ID.
func (a *MarksApp) ResolveUser(ctx context.Context, email string) (string, error) {
	if email == "" {
		return marks.AnonymousUser, nil
	}
	var id string
	err := a.store.ReadTx(ctx, func(tx marks.Tx) error {
		u, err := tx.GetUserByEmail(email)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %q: %w", email, marks.ErrNotFound)
		}
		id = u.ID
		return nil
	})
	return id, err
}

// Close releases the store and the log file.
func (a *MarksApp) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = err
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
