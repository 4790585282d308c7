package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	AccountsPathKey    = "accounts.path"
	ConfigDir          = ".jira-master"
	accountsFileMode   = 0o600
	accountsDirMode    = 0o700
	accountsConfigFile = "accounts.toml"
	tempFilePattern    = ".accounts-*.toml.tmp"
)

type Repository struct {
	accountsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(AccountsPathKey, filepath.Join(homeDir, ConfigDir, accountsConfigFile))

	accountsPath := cfg.GetString(AccountsPathKey)
	if accountsPath == "" {
		return nil, errors.New("accounts path is empty")
	}
	accountsPath, err = normalizeAccountsPath(accountsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{accountsPath: accountsPath, mu: lockForPath(accountsPath)}, nil
}

func (r *Repository) Path() string {
	return r.accountsPath
}

// Save inserts or replaces the account with the same alias. Other entries are written back untouched.
func (r *Repository) Save(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(account)
	updated := false
	for i := range file.Accounts {
		if file.Accounts[i].Alias == encoded.Alias {
			file.Accounts[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Accounts = append(file.Accounts, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) Remove(ctx context.Context, alias domain.AccountAlias) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := file.Accounts[:0]
	for _, entry := range file.Accounts {
		if entry.Alias != string(alias) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(file.Accounts) {
		return domain.ErrAccountNotFound
	}
	file.Accounts = kept

	return r.writeSchema(file)
}

func (r *Repository) GetByAlias(ctx context.Context, alias domain.AccountAlias) (domain.Account, error) {
	accounts, err := r.List(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	for _, account := range accounts {
		if account.Alias == alias {
			return account, nil
		}
	}

	return domain.Account{}, domain.ErrAccountNotFound
}

// List returns the accounts in file order. Any invalid entry fails the whole read.
func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(file.Accounts))
	seen := make(map[domain.AccountAlias]struct{}, len(file.Accounts))
	for _, entry := range file.Accounts {
		account, err := fromSchema(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[account.Alias]; dup {
			return nil, fmt.Errorf("duplicate account alias %q", account.Alias)
		}
		seen[account.Alias] = struct{}{}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.accountsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read accounts file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode accounts file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeAccountsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve accounts path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.accountsPath), accountsDirMode); err != nil {
		return fmt.Errorf("create accounts directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode accounts file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.accountsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp accounts file: %w", err)
	}

	tempName := tempFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp accounts file: %w", err)
	}
	if err := tempFile.Chmod(accountsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp accounts file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp accounts file: %w", err)
	}
	if err := os.Rename(tempName, r.accountsPath); err != nil {
		return fmt.Errorf("replace accounts file: %w", err)
	}
	committed = true

	return nil
}

func toSchema(account domain.Account) accountSchema {
	return accountSchema{
		Alias:       string(account.Alias),
		Host:        account.Host,
		Priority:    account.Priority,
		APIBasePath: account.APIBasePath,
		UseAPIv3:    account.UseAPIv3,
		Color:       account.Color,
		Auth: authSchema{
			Kind:     string(account.Auth.Kind),
			Username: account.Auth.Username,
			Password: account.Auth.Password,
			Token:    account.Auth.Token,
		},
		RateLimit: rateLimitSchema{
			Enabled:         account.RateLimit.Enabled,
			DelayMs:         account.RateLimit.Delay.Milliseconds(),
			ConcurrentSlots: account.RateLimit.ConcurrentSlots,
		},
	}
}

func fromSchema(entry accountSchema) (domain.Account, error) {
	kind, err := domain.ParseAuthKind(entry.Auth.Kind)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", entry.Alias, err)
	}

	account := domain.Account{
		Alias:       domain.AccountAlias(entry.Alias),
		Host:        entry.Host,
		Priority:    entry.Priority,
		APIBasePath: entry.APIBasePath,
		UseAPIv3:    entry.UseAPIv3,
		Color:       entry.Color,
		Auth: domain.Auth{
			Kind:     kind,
			Username: os.ExpandEnv(entry.Auth.Username),
			Password: os.ExpandEnv(entry.Auth.Password),
			Token:    os.ExpandEnv(entry.Auth.Token),
		},
		RateLimit: domain.RateLimit{
			Enabled:         entry.RateLimit.Enabled,
			Delay:           time.Duration(entry.RateLimit.DelayMs) * time.Millisecond,
			ConcurrentSlots: entry.RateLimit.ConcurrentSlots,
		},
	}
	if err := account.Validate(); err != nil {
		return domain.Account{}, err
	}

	return account, nil
}
