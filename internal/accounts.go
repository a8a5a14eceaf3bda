package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
)

// ReadAccountsFile parses a JSON array of account entries.
func ReadAccountsFile(path string) ([]dto.AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read accounts file %s", path)
	}
	var configs []dto.AccountConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, errors.Wrapf(err, "parse accounts file %s", path)
	}
	return configs, nil
}

// ToAccount maps an import entry onto the stored account shape with provider defaults applied.
func ToAccount(cfg dto.AccountConfig) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" {
		return nil, errors.New("account email is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("account %s: password is required", email)
	}

	account := &models.Account{
		Email:    email,
		Password: cfg.Password,
		Host:     strings.TrimSpace(cfg.Host),
		Port:     cfg.Port,
		Provider: enum.EmailProvider(strings.ToLower(cfg.Provider)),
		Security: enum.EmailSecurity(strings.ToLower(cfg.Security)),
	}
	for _, f := range cfg.Folders {
		if f = strings.TrimSpace(f); f != "" {
			account.Folders = append(account.Folders, f)
		}
	}
	account.ApplyDefaults()
	if account.Host == "" {
		return nil, fmt.Errorf("account %s: host is required for provider %s", email, account.Provider)
	}
	return account, nil
}

// ImportAccounts upserts every valid entry of the file by email. Invalid
// entries are logged and skipped.
func ImportAccounts(ctx context.Context, path string, repo interfaces.AccountRepository, log logger.Logger) (int, error) {
	configs, err := ReadAccountsFile(path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for i, cfg := range configs {
		account, err := ToAccount(cfg)
		if err != nil {
			log.Warnf("Skipping accounts file entry %d: %v", i, err)
			continue
		}
		if err := repo.SaveAccount(ctx, account); err != nil {
			return imported, errors.Wrapf(err, "save account %s", account.Email)
		}
		imported++
	}
	log.Infof("Imported %d of %d accounts from %s", imported, len(configs), path)
	return imported, nil
}

// LoadAccounts registers every stored account with the orchestrator.
func LoadAccounts(ctx context.Context, repo interfaces.AccountRepository, orchestrator interfaces.SyncOrchestrator, log logger.Logger) error {
	log.Info("Initializing account workers...")

	accounts, err := repo.GetAccounts(ctx)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if err := orchestrator.AddAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to add account %s: %w", account.ID, err)
		}
	}

	log.Infof("Successfully initialized %d accounts", len(accounts))
	return nil
}
