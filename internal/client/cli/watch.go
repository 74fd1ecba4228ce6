package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// pollInterval - фоновый опрос сервера в watch режиме.
// Push события только ускоряют реакцию, источник истины - опрос.
const pollInterval = time.Minute

// runWatch следит за JSON файлом dataset и непрерывно синхронизирует:
// локальные правки файла уходят на сервер (с debounce), изменения
// с других устройств подтягиваются и переписывают файл
func (c *Cli) runWatch(ctx context.Context, args []string) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	path := defaultDatasetFile
	if len(args) > 0 {
		path = args[0]
	}

	w := &watcher{
		cli:  c,
		path: path,
	}

	// Стартовое состояние: подтянуть серверную версию в файл
	if err := w.pullIntoFile(ctx, false); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	// Редакторы заменяют файл целиком, поэтому следим за каталогом
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	c.io.Printf("Watching %s (Ctrl+C to stop)\n", path)

	go w.streamLoop(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.io.Println("Stopping, pushing pending changes...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.syncService.Shutdown(shutdownCtx)
			cancel()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.onFileChanged(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			c.io.Printf("Watch error: %v\n", err)

		case <-ticker.C:
			w.checkRemote(ctx)
		}
	}
}

// watcher хранит состояние watch режима
type watcher struct {
	cli  *Cli
	path string
	// selfWriteAt отсекает fsnotify события от наших собственных записей
	selfWriteAt time.Time
}

// onFileChanged читает файл и планирует отправку на сервер
func (w *watcher) onFileChanged(ctx context.Context) {
	// Событие от нашей же записи после pull
	if time.Since(w.selfWriteAt) < time.Second {
		return
	}

	ds, err := loadDatasetFile(w.path)
	if err != nil {
		// Редактор мог сохранить файл наполовину; следующее событие доберет
		w.cli.io.Printf("Skipping change: %v\n", err)
		return
	}

	if err := w.cli.syncService.Update(ctx, ds); err != nil {
		w.cli.io.Printf("Failed to stage change: %v\n", err)
		return
	}

	w.cli.io.Printf("Local change staged (%s)\n", time.Now().Format(time.TimeOnly))
}

// checkRemote опрашивает сервер и подтягивает более новую версию
func (w *watcher) checkRemote(ctx context.Context) {
	newer, _, err := w.cli.syncService.CheckRemote(ctx)
	if err != nil {
		w.cli.io.Printf("Poll failed: %v\n", err)
		return
	}
	if !newer {
		return
	}

	if err := w.pullIntoFile(ctx, false); err != nil {
		w.cli.io.Printf("Pull failed: %v\n", err)
	}
}

// pullIntoFile загружает серверный dataset и переписывает файл
func (w *watcher) pullIntoFile(ctx context.Context, force bool) error {
	cached, err := w.cli.syncService.Pull(ctx, force)
	if err != nil {
		return err
	}
	if cached == nil {
		return nil
	}

	w.selfWriteAt = time.Now()
	if err := writeDatasetFile(w.path, &cached.Dataset); err != nil {
		return err
	}

	w.cli.io.Printf("Updated %s to version %d\n", w.path, cached.Version)
	return nil
}

// streamLoop держит websocket подписку с переподключением.
// Сервер рвет соединение по потолку жизни, это штатный режим.
func (w *watcher) streamLoop(ctx context.Context) {
	backoff := time.Second

	for {
		err := w.cli.apiClient.Subscribe(ctx, func(msg api.StreamMessage) {
			switch msg.Type {
			case api.StreamDatasetUpdated, api.StreamDatasetDeleted:
				w.checkRemote(ctx)
			}
		})

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}

		w.cli.io.Printf("Stream disconnected, reconnecting in %s\n", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
