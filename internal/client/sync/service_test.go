package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tabkeeper/internal/client/storage"
	"github.com/iudanet/tabkeeper/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockServer имитирует серверную сторону синхронизации
type mockServer struct {
	mu              sync.Mutex
	dataset         api.Dataset
	version         int64
	hasData         bool
	saveCalls       int
	bestEffortCalls int
	statusCalls     int
	saveErr         error
}

func (m *mockServer) Save(_ context.Context, req api.SaveRequest) (*api.SaveResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	if m.saveErr != nil {
		return nil, m.saveErr
	}

	version := req.Version
	if m.version > version {
		version = m.version
	}
	if version < 1 {
		version = 1
	}

	m.dataset = req.Dataset
	m.dataset.Version = version
	m.version = version
	m.hasData = true

	return &api.SaveResponse{Version: version, LastUpdated: time.Now()}, nil
}

func (m *mockServer) SaveBestEffort(req api.SaveRequest) error {
	m.mu.Lock()
	m.bestEffortCalls++
	m.mu.Unlock()

	_, err := m.Save(context.Background(), req)
	return err
}

func (m *mockServer) Load(_ context.Context) (*api.LoadResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasData {
		return &api.LoadResponse{HasData: false}, nil
	}
	return &api.LoadResponse{Dataset: m.dataset, HasData: true, LastUpdated: time.Now()}, nil
}

func (m *mockServer) Status(_ context.Context) (*api.StatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statusCalls++
	return &api.StatusResponse{HasData: m.hasData, Version: m.version}, nil
}

func (m *mockServer) stats() (saves, statuses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls, m.statusCalls
}

// memCache - CacheStorage в памяти
type memCache struct {
	mu    sync.Mutex
	cache *storage.CachedDataset
}

func (m *memCache) SaveCache(_ context.Context, c *storage.CachedDataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.cache = &clone
	return nil
}

func (m *memCache) GetCache(_ context.Context) (*storage.CachedDataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		return nil, storage.ErrNoCache
	}
	clone := *m.cache
	return &clone, nil
}

func (m *memCache) DeleteCache(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = nil
	return nil
}

func testDataset(n string) *api.Dataset {
	return &api.Dataset{
		Categories: []api.Category{{ID: n, Name: n}},
		Sites:      map[string][]api.Site{},
	}
}

func TestUpdateDebouncesPushes(t *testing.T) {
	server := &mockServer{}
	cache := &memCache{}
	svc := NewService(server, cache, testLogger(), nil, WithDebounce(30*time.Millisecond))

	ctx := context.Background()

	// Серия быстрых правок
	require.NoError(t, svc.Update(ctx, testDataset("a")))
	require.NoError(t, svc.Update(ctx, testDataset("b")))
	require.NoError(t, svc.Update(ctx, testDataset("c")))

	// До истечения debounce отправки нет
	saves, _ := server.stats()
	assert.Equal(t, 0, saves)

	// Ждем debounce: серия схлопнулась в одну отправку
	require.Eventually(t, func() bool {
		saves, _ := server.stats()
		return saves == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "c", server.dataset.Categories[0].ID, "last edit wins")

	got, err := cache.GetCache(ctx)
	require.NoError(t, err)
	assert.False(t, got.Dirty)
	assert.Equal(t, int64(1), got.Version)
}

func TestPush_NoopWhenClean(t *testing.T) {
	server := &mockServer{}
	cache := &memCache{}
	svc := NewService(server, cache, testLogger(), nil)

	ctx := context.Background()

	// Нечего отправлять
	resp, err := svc.Push(ctx)
	require.NoError(t, err)
	assert.Nil(t, resp)

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("a"),
		Version: 2,
		Dirty:   false,
	}))

	resp, err = svc.Push(ctx)
	require.NoError(t, err)
	assert.Nil(t, resp)

	saves, _ := server.stats()
	assert.Equal(t, 0, saves)
}

func TestPush_VersionIncrements(t *testing.T) {
	server := &mockServer{version: 4, hasData: true}
	cache := &memCache{}
	svc := NewService(server, cache, testLogger(), nil)

	ctx := context.Background()
	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("a"),
		Version: 4,
		Dirty:   true,
	}))

	resp, err := svc.Push(ctx)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, int64(5), resp.Version)

	got, err := cache.GetCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
	assert.Equal(t, int64(5), got.Dataset.Version)
}

func TestPull_FirstLoadAppliesUnconditionally(t *testing.T) {
	server := &mockServer{dataset: *testDataset("remote"), version: 7, hasData: true}
	server.dataset.Version = 7
	cache := &memCache{}

	declined := false
	svc := NewService(server, cache, testLogger(), func(local, remote int64) bool {
		declined = true
		return false
	})

	got, err := svc.Pull(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Version)
	assert.False(t, declined, "first load must not ask for confirmation")
}

func TestPull_DirtyLocalAsksConfirmation(t *testing.T) {
	server := &mockServer{dataset: *testDataset("remote"), version: 9, hasData: true}
	server.dataset.Version = 9
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 3,
		Dirty:   true,
	}))

	// Пользователь отказывается: локальные правки сохраняются
	svc := NewService(server, cache, testLogger(), func(local, remote int64) bool {
		assert.Equal(t, int64(3), local)
		assert.Equal(t, int64(9), remote)
		return false
	})

	got, err := svc.Pull(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "local", got.Dataset.Categories[0].ID)
	assert.True(t, got.Dirty)

	// Пользователь соглашается: серверная версия затирает локальную
	svc = NewService(server, cache, testLogger(), func(local, remote int64) bool { return true })

	got, err = svc.Pull(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Dataset.Categories[0].ID)
	assert.False(t, got.Dirty)
}

func TestPull_CleanLocalConflictAsksConfirmation(t *testing.T) {
	server := &mockServer{dataset: *testDataset("remote"), version: 5, hasData: true}
	server.dataset.Version = 5
	cache := &memCache{}
	ctx := context.Background()

	// Чистая синхронизированная копия, без несохраненных правок
	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 3,
		Dirty:   false,
	}))

	// Отказ: локальная копия не трогается
	asked := false
	svc := NewService(server, cache, testLogger(), func(local, remote int64) bool {
		asked = true
		assert.Equal(t, int64(3), local)
		assert.Equal(t, int64(5), remote)
		return false
	})

	got, err := svc.Pull(ctx, false)
	require.NoError(t, err)
	assert.True(t, asked, "clean local copy must not be replaced silently")
	assert.Equal(t, "local", got.Dataset.Categories[0].ID)
	assert.Equal(t, int64(3), got.Version)

	// Согласие: серверная версия применяется
	svc = NewService(server, cache, testLogger(), func(local, remote int64) bool { return true })

	got, err = svc.Pull(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Dataset.Categories[0].ID)
	assert.Equal(t, int64(5), got.Version)
}

func TestPull_SameVersionCleanNoPrompt(t *testing.T) {
	server := &mockServer{dataset: *testDataset("remote"), version: 4, hasData: true}
	server.dataset.Version = 4
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 4,
		Dirty:   false,
	}))

	asked := false
	svc := NewService(server, cache, testLogger(), func(local, remote int64) bool {
		asked = true
		return false
	})

	got, err := svc.Pull(ctx, false)
	require.NoError(t, err)
	assert.False(t, asked, "refresh of a clean copy at the same version needs no prompt")
	assert.Equal(t, int64(4), got.Version)
}

func TestPull_ForceSkipsConfirmation(t *testing.T) {
	server := &mockServer{dataset: *testDataset("remote"), version: 9, hasData: true}
	server.dataset.Version = 9
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 3,
		Dirty:   true,
	}))

	asked := false
	svc := NewService(server, cache, testLogger(), func(local, remote int64) bool {
		asked = true
		return false
	})

	got, err := svc.Pull(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Dataset.Categories[0].ID)
	assert.False(t, asked)
}

func TestPull_EmptyServerKeepsLocal(t *testing.T) {
	server := &mockServer{}
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 2,
		Dirty:   true,
	}))

	svc := NewService(server, cache, testLogger(), nil)

	got, err := svc.Pull(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "local", got.Dataset.Categories[0].ID)
}

func TestCheckRemote_Throttled(t *testing.T) {
	server := &mockServer{version: 5, hasData: true}
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 3,
	}))

	svc := NewService(server, cache, testLogger(), nil, WithPollThrottle(time.Hour))

	newer, status, err := svc.CheckRemote(ctx)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, newer)

	// Второй опрос внутри окна троттлинга не трогает сервер
	newer, status, err = svc.CheckRemote(ctx)
	require.NoError(t, err)
	assert.Nil(t, status)
	assert.False(t, newer)

	_, statuses := server.stats()
	assert.Equal(t, 1, statuses)
}

func TestCheckRemote_NotNewer(t *testing.T) {
	server := &mockServer{version: 3, hasData: true}
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("local"),
		Version: 3,
	}))

	svc := NewService(server, cache, testLogger(), nil, WithPollThrottle(0))

	newer, _, err := svc.CheckRemote(ctx)
	require.NoError(t, err)
	assert.False(t, newer)
}

func TestShutdown_SendsBestEffortSave(t *testing.T) {
	server := &mockServer{}
	cache := &memCache{}
	ctx := context.Background()

	// Debounce большой: без Shutdown отправка не успела бы
	svc := NewService(server, cache, testLogger(), nil, WithDebounce(time.Hour))
	require.NoError(t, svc.Update(ctx, testDataset("a")))

	svc.Shutdown(ctx)

	server.mu.Lock()
	bestEffort := server.bestEffortCalls
	got := server.dataset.Categories[0].ID
	server.mu.Unlock()
	assert.Equal(t, 1, bestEffort)
	assert.Equal(t, "a", got)

	// Подтверждения нет, кеш остается dirty до обычного push
	cached, err := cache.GetCache(ctx)
	require.NoError(t, err)
	assert.True(t, cached.Dirty)
}

func TestShutdown_CleanCacheSendsNothing(t *testing.T) {
	server := &mockServer{}
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("a"),
		Version: 2,
		Dirty:   false,
	}))

	svc := NewService(server, cache, testLogger(), nil)
	svc.Shutdown(ctx)

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Equal(t, 0, server.bestEffortCalls)
	assert.Equal(t, 0, server.saveCalls)
}

// Два устройства одного пользователя сходятся к одному состоянию
// через push/poll/pull цикл
func TestTwoClientsConverge(t *testing.T) {
	server := &mockServer{}
	ctx := context.Background()

	cacheA := &memCache{}
	cacheB := &memCache{}
	clientA := NewService(server, cacheA, testLogger(), nil, WithPollThrottle(0))
	clientB := NewService(server, cacheB, testLogger(), nil, WithPollThrottle(0))

	// A сохраняет первую версию
	require.NoError(t, clientA.Update(ctx, testDataset("from-a")))
	_, err := clientA.Push(ctx)
	require.NoError(t, err)

	// B узнает о новой версии и подтягивает ее
	newer, _, err := clientB.CheckRemote(ctx)
	require.NoError(t, err)
	require.True(t, newer)

	got, err := clientB.Pull(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "from-a", got.Dataset.Categories[0].ID)
	assert.Equal(t, int64(1), got.Version)

	// B правит и отправляет, A подтягивает
	require.NoError(t, clientB.Update(ctx, testDataset("from-b")))
	_, err = clientB.Push(ctx)
	require.NoError(t, err)

	newer, _, err = clientA.CheckRemote(ctx)
	require.NoError(t, err)
	require.True(t, newer)

	got, err = clientA.Pull(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "from-b", got.Dataset.Categories[0].ID)
	assert.Equal(t, int64(2), got.Version)

	// Обе локальные копии идентичны серверной
	a, err := cacheA.GetCache(ctx)
	require.NoError(t, err)
	b, err := cacheB.GetCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Dataset, b.Dataset)
	assert.Equal(t, a.Version, b.Version)
}

func TestPush_ServerErrorKeepsDirty(t *testing.T) {
	server := &mockServer{saveErr: errors.New("boom")}
	cache := &memCache{}
	ctx := context.Background()

	require.NoError(t, cache.SaveCache(ctx, &storage.CachedDataset{
		Dataset: *testDataset("a"),
		Version: 1,
		Dirty:   true,
	}))

	svc := NewService(server, cache, testLogger(), nil)

	_, err := svc.Push(ctx)
	require.Error(t, err)

	// Правки не потеряны, повторная отправка возможна
	got, err := cache.GetCache(ctx)
	require.NoError(t, err)
	assert.True(t, got.Dirty)
}
