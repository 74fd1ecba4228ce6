package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/tabkeeper/internal/client/storage"
)

// defaultDatasetFile - файл dataset по умолчанию
const defaultDatasetFile = "tabs.json"

// runPush загружает dataset из файла и сразу отправляет на сервер
func (c *Cli) runPush(ctx context.Context, args []string) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	path := defaultDatasetFile
	if len(args) > 0 {
		path = args[0]
	}

	ds, err := loadDatasetFile(path)
	if err != nil {
		return err
	}

	if err := c.syncService.Update(ctx, ds); err != nil {
		return err
	}

	resp, err := c.syncService.Push(ctx)
	if err != nil {
		return err
	}
	if resp == nil {
		c.io.Println("Nothing to push.")
		return nil
	}

	c.io.Printf("Pushed %s (version %d)\n", path, resp.Version)
	return nil
}

// runPull скачивает серверный dataset в файл
func (c *Cli) runPull(ctx context.Context, args []string) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	force := false
	path := defaultDatasetFile
	for _, arg := range args {
		if arg == "-f" || arg == "--force" {
			force = true
			continue
		}
		path = arg
	}

	cached, err := c.syncService.Pull(ctx, force)
	if err != nil {
		return err
	}
	if cached == nil {
		c.io.Println("No data on server yet.")
		return nil
	}

	if err := writeDatasetFile(path, &cached.Dataset); err != nil {
		return err
	}

	c.io.Printf("Pulled version %d into %s\n", cached.Version, path)
	return nil
}

// runStatus показывает локальное и серверное состояние синхронизации
func (c *Cli) runStatus(ctx context.Context) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	cached, err := c.syncService.Local(ctx)
	if err != nil && !errors.Is(err, storage.ErrNoCache) {
		return err
	}

	if cached == nil {
		c.io.Println("Local:  no cached dataset")
	} else {
		dirty := ""
		if cached.Dirty {
			dirty = " (unsaved changes)"
		}
		c.io.Printf("Local:  version %d, synced %s%s\n",
			cached.Version, cached.SyncedAt.Format(time.RFC3339), dirty)
	}

	status, err := c.apiClient.Status(ctx)
	if err != nil {
		return err
	}

	if !status.HasData {
		c.io.Println("Server: no data")
		return nil
	}

	c.io.Printf("Server: version %d, updated %s\n",
		status.Version, status.LastUpdated.Format(time.RFC3339))

	if cached != nil && status.Version > cached.Version {
		c.io.Println("Server has newer data, run 'tabkeeper pull'.")
	}
	return nil
}

// runVersions печатает историю версий
func (c *Cli) runVersions(ctx context.Context) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	resp, err := c.apiClient.Versions(ctx)
	if err != nil {
		return err
	}

	if len(resp.Versions) == 0 {
		c.io.Println("No versions yet.")
		return nil
	}

	for _, v := range resp.Versions {
		var tags []string
		if v.RestoredFrom != 0 {
			tags = append(tags, fmt.Sprintf("restored from %d", v.RestoredFrom))
		}
		if v.Audit.Device != "" {
			tags = append(tags, v.Audit.Device)
		}
		if v.Audit.Country != "" {
			tags = append(tags, v.Audit.Country)
		}

		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}

		c.io.Printf("%d  %s  %s%s\n",
			v.Version, v.CreatedAt.Format(time.RFC3339), v.Description, suffix)
	}
	return nil
}

// runRestore восстанавливает историческую версию
func (c *Cli) runRestore(ctx context.Context, args []string) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	if len(args) == 0 {
		return fmt.Errorf("usage: tabkeeper restore VERSION")
	}

	version, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}

	resp, err := c.apiClient.Restore(ctx, version)
	if err != nil {
		return err
	}

	// Восстановленная версия становится локальной копией
	if err := c.store.SaveCache(ctx, &storage.CachedDataset{
		Dataset:  resp.Dataset,
		Version:  resp.Dataset.Version,
		SyncedAt: resp.LastUpdated,
		Dirty:    false,
	}); err != nil {
		return err
	}

	c.io.Printf("Restored version %d as new version %d\n", version, resp.Dataset.Version)
	return nil
}

// runDelete невосстановимо удаляет все данные на сервере
func (c *Cli) runDelete(ctx context.Context) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	answer, err := c.io.ReadInput("Permanently delete ALL data on the server? This cannot be undone. [y/N]: ")
	if err != nil {
		return err
	}
	if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
		c.io.Println("Aborted.")
		return nil
	}

	if err := c.apiClient.DeleteData(ctx); err != nil {
		return err
	}

	if err := c.store.DeleteCache(ctx); err != nil {
		c.io.Printf("Warning: failed to clear local cache: %v\n", err)
	}

	c.io.Println("All data deleted.")
	return nil
}
