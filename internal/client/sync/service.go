// Package sync реализует клиентский цикл синхронизации dataset:
// debounce исходящих сохранений, троттлинг опроса сервера и
// подтверждение затирающих загрузок.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/tabkeeper/internal/client/storage"
	"github.com/iudanet/tabkeeper/pkg/api"
)

const (
	// DefaultDebounce - пауза после последней правки перед отправкой
	DefaultDebounce = 2 * time.Second
	// DefaultPollThrottle - минимальный интервал между опросами сервера
	DefaultPollThrottle = 10 * time.Second
)

// APIClient определяет операции сервера, нужные циклу синхронизации.
// SaveBestEffort - отдельный fire-and-forget режим для завершения:
// короткий таймаут, ответ отбрасывается.
type APIClient interface {
	Save(ctx context.Context, req api.SaveRequest) (*api.SaveResponse, error)
	SaveBestEffort(req api.SaveRequest) error
	Load(ctx context.Context) (*api.LoadResponse, error)
	Status(ctx context.Context) (*api.StatusResponse, error)
}

// ConfirmFunc спрашивает пользователя, можно ли заменить локальную
// копию более новой серверной версией
type ConfirmFunc func(localVersion, remoteVersion int64) bool

// Service ведет локальную копию dataset и гоняет ее на сервер и обратно
type Service struct {
	client   APIClient
	cache    storage.CacheStorage
	logger   *slog.Logger
	confirm  ConfirmFunc
	debounce time.Duration
	throttle time.Duration

	mu          sync.Mutex
	timer       *time.Timer
	inFlight    bool
	pendingPush bool
	lastPoll    time.Time
}

// Option настраивает Service
type Option func(*Service)

// WithDebounce задает паузу debounce исходящих сохранений
func WithDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// WithPollThrottle задает минимальный интервал опроса
func WithPollThrottle(d time.Duration) Option {
	return func(s *Service) { s.throttle = d }
}

// NewService создает sync service. confirm может быть nil:
// тогда более новая серверная версия применяется без вопросов.
func NewService(client APIClient, cache storage.CacheStorage, logger *slog.Logger, confirm ConfirmFunc, opts ...Option) *Service {
	s := &Service{
		client:   client,
		cache:    cache,
		logger:   logger,
		confirm:  confirm,
		debounce: DefaultDebounce,
		throttle: DefaultPollThrottle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Local возвращает локальную копию dataset
func (s *Service) Local(ctx context.Context) (*storage.CachedDataset, error) {
	return s.cache.GetCache(ctx)
}

// Update применяет локальную правку и планирует отложенную отправку.
// Быстрая серия правок схлопывается в одно сохранение на сервер.
func (s *Service) Update(ctx context.Context, dataset *api.Dataset) error {
	cached, err := s.cache.GetCache(ctx)
	if err != nil && !errors.Is(err, storage.ErrNoCache) {
		return fmt.Errorf("failed to read local cache: %w", err)
	}

	var version int64
	if cached != nil {
		version = cached.Version
	}

	if err := s.cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *dataset,
		Version: version,
		Dirty:   true,
	}); err != nil {
		return fmt.Errorf("failed to save local cache: %w", err)
	}

	s.schedulePush()
	return nil
}

// schedulePush взводит (или перевзводит) debounce таймер
func (s *Service) schedulePush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := s.Push(ctx); err != nil {
			s.logger.Warn("debounced push failed", slog.Any("error", err))
		}
	})
}

// Push немедленно отправляет локальную копию на сервер.
// Пока запрос в полете, новые вызовы откладываются и выполняются
// одним заходом после завершения текущего.
func (s *Service) Push(ctx context.Context) (*api.SaveResponse, error) {
	s.mu.Lock()
	if s.inFlight {
		// Запрос уже летит: запоминаем, что после него нужен еще один
		s.pendingPush = true
		s.mu.Unlock()
		return nil, nil
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		rerun := s.pendingPush
		s.pendingPush = false
		s.mu.Unlock()

		if rerun {
			if _, err := s.Push(ctx); err != nil {
				s.logger.Warn("queued push failed", slog.Any("error", err))
			}
		}
	}()

	cached, err := s.cache.GetCache(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoCache) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read local cache: %w", err)
	}

	if !cached.Dirty {
		return nil, nil
	}

	resp, err := s.client.Save(ctx, api.SaveRequest{
		Dataset: cached.Dataset,
		Version: cached.Version + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}

	cached.Version = resp.Version
	cached.Dataset.Version = resp.Version
	cached.SyncedAt = resp.LastUpdated
	cached.Dirty = false

	if err := s.cache.SaveCache(ctx, cached); err != nil {
		return nil, fmt.Errorf("failed to update local cache: %w", err)
	}

	s.logger.Info("dataset pushed", slog.Int64("version", resp.Version))
	return resp, nil
}

// Pull загружает серверный dataset и делает его локальной копией.
// Затирание уже синхронизированной локальной копии более новой
// серверной версией требует подтверждения пользователя; без вопросов
// применяются только первая загрузка (version 0) и force.
func (s *Service) Pull(ctx context.Context, force bool) (*storage.CachedDataset, error) {
	cached, err := s.cache.GetCache(ctx)
	if err != nil && !errors.Is(err, storage.ErrNoCache) {
		return nil, fmt.Errorf("failed to read local cache: %w", err)
	}

	remote, err := s.client.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}

	if !remote.HasData {
		// На сервере пусто: локальная копия остается как есть
		return cached, nil
	}

	// Конфликт: сервер строго новее синхронизированной копии, либо
	// есть несохраненные правки. Чистая копия той же версии
	// переписывается молча, там терять нечего.
	if cached != nil && cached.Version > 0 && !force {
		conflict := cached.Dirty || remote.Dataset.Version > cached.Version
		if conflict && s.confirm != nil && !s.confirm(cached.Version, remote.Dataset.Version) {
			s.logger.Info("pull declined by user",
				slog.Int64("local_version", cached.Version),
				slog.Int64("remote_version", remote.Dataset.Version))
			return cached, nil
		}
	}

	fresh := &storage.CachedDataset{
		Dataset:  remote.Dataset,
		Version:  remote.Dataset.Version,
		SyncedAt: remote.LastUpdated,
		Dirty:    false,
	}

	if err := s.cache.SaveCache(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to save local cache: %w", err)
	}

	s.logger.Info("dataset pulled", slog.Int64("version", fresh.Version))
	return fresh, nil
}

// CheckRemote опрашивает версию сервера, не чаще throttle.
// Возвращает (версия новее локальной, статус). Троттлинг гасит
// шторм опросов от серии push событий.
func (s *Service) CheckRemote(ctx context.Context) (bool, *api.StatusResponse, error) {
	s.mu.Lock()
	if time.Since(s.lastPoll) < s.throttle {
		s.mu.Unlock()
		return false, nil, nil
	}
	s.lastPoll = time.Now()
	s.mu.Unlock()

	status, err := s.client.Status(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("status poll failed: %w", err)
	}

	if !status.HasData {
		return false, status, nil
	}

	cached, err := s.cache.GetCache(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoCache) {
			return true, status, nil
		}
		return false, nil, fmt.Errorf("failed to read local cache: %w", err)
	}

	return status.Version > cached.Version, status, nil
}

// Shutdown останавливает debounce таймер и отправляет несохраненные
// правки прощальным fire-and-forget запросом. Кеш остается dirty:
// подтверждения от сервера нет, а повторная отправка при следующем
// старте безопасна, сервер берет max версий.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	cached, err := s.cache.GetCache(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNoCache) {
			s.logger.Warn("failed to read local cache on shutdown", slog.Any("error", err))
		}
		return
	}
	if !cached.Dirty {
		return
	}

	if err := s.client.SaveBestEffort(api.SaveRequest{
		Dataset: cached.Dataset,
		Version: cached.Version + 1,
	}); err != nil {
		s.logger.Warn("final best-effort save failed", slog.Any("error", err))
	}
}
