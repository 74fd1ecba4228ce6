// Package cli реализует команды клиента tabkeeper
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	httpClient "github.com/iudanet/tabkeeper/internal/client/api"
	"github.com/iudanet/tabkeeper/internal/client/auth"
	"github.com/iudanet/tabkeeper/internal/client/iocli"
	"github.com/iudanet/tabkeeper/internal/client/storage"
	"github.com/iudanet/tabkeeper/internal/client/sync"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// ClientStorage объединяет слои клиентского хранилища
type ClientStorage interface {
	storage.AuthStorage
	storage.CacheStorage
}

// Cli связывает команды с сервисами клиента
type Cli struct {
	io          iocli.IO
	apiClient   *httpClient.Client
	authService *auth.Service
	syncService *sync.Service
	store       ClientStorage
}

// New создает CLI
func New(io iocli.IO, apiClient *httpClient.Client, authService *auth.Service, syncService *sync.Service, store ClientStorage) *Cli {
	return &Cli{
		io:          io,
		apiClient:   apiClient,
		authService: authService,
		syncService: syncService,
		store:       store,
	}
}

// SetSyncService подставляет sync service после создания CLI.
// ConfirmOverwrite замыкается на CLI, поэтому сервис собирается вторым.
func (c *Cli) SetSyncService(s *sync.Service) {
	c.syncService = s
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "push":
		return c.runPush(ctx, args)
	case "pull":
		return c.runPull(ctx, args)
	case "status":
		return c.runStatus(ctx)
	case "versions":
		return c.runVersions(ctx)
	case "restore":
		return c.runRestore(ctx, args)
	case "delete":
		return c.runDelete(ctx)
	case "sessions":
		return c.runSessions(ctx)
	case "revoke":
		return c.runRevoke(ctx, args)
	case "watch":
		return c.runWatch(ctx, args)
	default:
		PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// requireAuth восстанавливает сохраненную сессию перед командой
func (c *Cli) requireAuth(ctx context.Context) error {
	if _, err := c.authService.Restore(ctx); err != nil {
		return err
	}
	return nil
}

// ConfirmOverwrite спрашивает пользователя про затирающую загрузку
func (c *Cli) ConfirmOverwrite(localVersion, remoteVersion int64) bool {
	c.io.Printf("Server version %d will replace your local copy (version %d).\n",
		remoteVersion, localVersion)
	answer, err := c.io.ReadInput("Replace local copy? [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// loadDatasetFile читает dataset из JSON файла
func loadDatasetFile(path string) (*api.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var ds api.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("invalid dataset file %s: %w", path, err)
	}
	return &ds, nil
}

// writeDatasetFile пишет dataset в JSON файл
func writeDatasetFile(path string, ds *api.Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// PrintUsage выводит справку по командам
func PrintUsage() {
	fmt.Println("TabKeeper Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tabkeeper [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -server URL         Server URL (default: http://localhost:8080)")
	fmt.Println("  -db PATH            Path to local database (default: tabkeeper-client.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register            Register new user")
	fmt.Println("  login               Login to server")
	fmt.Println("  logout              Logout from server")
	fmt.Println("  push [FILE]         Upload dataset from JSON file (default: tabs.json)")
	fmt.Println("  pull [-f] [FILE]    Download dataset into JSON file; -f overwrites local changes")
	fmt.Println("  status              Show local and server sync state")
	fmt.Println("  versions            List version history")
	fmt.Println("  restore VERSION     Restore a historical version as the new current one")
	fmt.Println("  delete              Permanently delete all data on the server")
	fmt.Println("  sessions            List active device sessions")
	fmt.Println("  revoke SESSION_ID   Revoke another device session")
	fmt.Println("  watch [FILE]        Watch a JSON file and sync changes continuously")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tabkeeper register")
	fmt.Println("  tabkeeper login")
	fmt.Println("  tabkeeper push tabs.json")
	fmt.Println("  tabkeeper pull")
	fmt.Println("  tabkeeper restore 1700000000")
	fmt.Println("  tabkeeper -server https://tabs.example.com watch tabs.json")
}
