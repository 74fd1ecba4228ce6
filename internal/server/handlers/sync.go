package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/tabkeeper/internal/audit"
	"github.com/iudanet/tabkeeper/internal/codec"
	"github.com/iudanet/tabkeeper/internal/models"
	"github.com/iudanet/tabkeeper/internal/server/storage"
	"github.com/iudanet/tabkeeper/internal/validation"
	"github.com/iudanet/tabkeeper/pkg/api"
)

// Notifier принимает события для push-канала. Доставка best-effort:
// сохранение данных не зависит от судьбы уведомления.
type Notifier interface {
	Enqueue(userID string, msg api.StreamMessage)
}

// SyncHandler обрабатывает операции синхронизации dataset:
// save / load / status / versions / restore / delete
type SyncHandler struct {
	logger   *slog.Logger
	storage  storage.SnapshotStorage
	notifier Notifier
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, snapshotStorage storage.SnapshotStorage, notifier Notifier) *SyncHandler {
	return &SyncHandler{
		logger:   logger,
		storage:  snapshotStorage,
		notifier: notifier,
	}
}

// emptyDataset - placeholder для пользователей без сохраненных данных
func emptyDataset() api.Dataset {
	return api.Dataset{
		Categories: []api.Category{},
		Sites:      map[string][]api.Site{},
		Settings:   map[string]json.RawMessage{},
	}
}

// describeDataset строит человекочитаемое описание для истории версий
func describeDataset(d *api.Dataset) string {
	sites := 0
	for _, list := range d.Sites {
		sites += len(list)
	}
	return fmt.Sprintf("%d categories, %d sites", len(d.Categories), sites)
}

// Save обрабатывает POST /api/v1/sync
// Назначает version = max(текущая на сервере, объявленная клиентом);
// на практике клиент шлет prior+1. Merge логики нет - межустройственные
// конфликты разруливает клиент через confirm поток.
func (h *SyncHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	var req api.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode save request", slog.Any("error", err))
		WriteError(w, "invalid request body", "", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateDataset(&req.Dataset); err != nil {
		h.logger.WarnContext(ctx, "invalid dataset", slog.Any("error", err))
		WriteError(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	// Текущая версия нужна только для арифметики версий;
	// "нет данных" - валидное состояние первой записи
	var currentVersion int64
	current, err := h.storage.GetCurrent(ctx, userID)
	switch {
	case err == nil:
		currentVersion = current.Version
	case errors.Is(err, storage.ErrNoSnapshot):
		currentVersion = 0
	default:
		h.logger.ErrorContext(ctx, "failed to get current snapshot", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	version := req.Version
	if currentVersion > version {
		// Отставший клиент не может откатить версию ниже серверной
		version = currentVersion
	}
	if version < 1 {
		version = 1
	}

	req.Dataset.Version = version

	payload, err := codec.Compress(&req.Dataset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compress dataset", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	auditInfo := audit.FromRequest(r)
	description := describeDataset(&req.Dataset)

	snapshot := &models.Snapshot{
		UserID:      userID,
		Payload:     payload,
		Version:     version,
		UpdatedAt:   now,
		Description: description,
		Device:      auditInfo.Device,
		IP:          auditInfo.IP,
		Country:     auditInfo.Country,
	}

	if err := h.storage.PutCurrent(ctx, snapshot); err != nil {
		h.logger.ErrorContext(ctx, "failed to put snapshot", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	entry := &models.VersionHistoryEntry{
		Version:     version,
		CreatedAt:   now,
		Description: description,
		Device:      auditInfo.Device,
		IP:          auditInfo.IP,
		Country:     auditInfo.Country,
	}

	if err := h.storage.AppendVersion(ctx, userID, entry, payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to append version history", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	h.notifier.Enqueue(userID, api.StreamMessage{
		Type:      api.StreamDatasetUpdated,
		Key:       fmt.Sprintf("update-%d", version),
		Version:   version,
		Timestamp: now,
	})

	h.logger.InfoContext(ctx, "dataset saved",
		slog.String("user_id", userID),
		slog.Int64("version", version),
		slog.String("description", description))

	WriteJSON(w, api.SaveResponse{Version: version, LastUpdated: now}, http.StatusOK)
}

// Load обрабатывает GET /api/v1/sync
// Возвращает текущий dataset. Поврежденный payload деградирует до
// пустого dataset: лучше пустая стартовая страница, чем вечный отказ.
func (h *SyncHandler) Load(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	current, err := h.storage.GetCurrent(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			WriteJSON(w, api.LoadResponse{Dataset: emptyDataset(), HasData: false}, http.StatusOK)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get current snapshot", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	dataset, err := codec.Decompress(current.Payload)
	if err != nil {
		// Fail-safe: поврежденный текущий snapshot = "нет данных"
		h.logger.ErrorContext(ctx, "current snapshot is corrupt, serving empty dataset",
			slog.String("user_id", userID),
			slog.Any("error", err))
		WriteJSON(w, api.LoadResponse{Dataset: emptyDataset(), HasData: false}, http.StatusOK)
		return
	}

	WriteJSON(w, api.LoadResponse{
		Dataset:     *dataset,
		HasData:     true,
		LastUpdated: current.UpdatedAt,
	}, http.StatusOK)
}

// Status обрабатывает GET /api/v1/sync/status
// Дешевый polling: версия и время без полного payload
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	current, err := h.storage.GetCurrent(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			WriteJSON(w, api.StatusResponse{HasData: false}, http.StatusOK)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get current snapshot", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	WriteJSON(w, api.StatusResponse{
		HasData:     true,
		Version:     current.Version,
		LastUpdated: current.UpdatedAt,
	}, http.StatusOK)
}

// Versions обрабатывает GET /api/v1/sync/versions
// IP в аудите уже замаскирован при записи
func (h *SyncHandler) Versions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	entries, err := h.storage.ListVersions(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list versions", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	resp := api.VersionListResponse{Versions: make([]api.VersionInfo, 0, len(entries))}
	for _, e := range entries {
		resp.Versions = append(resp.Versions, api.VersionInfo{
			Version:      e.Version,
			CreatedAt:    e.CreatedAt,
			Description:  e.Description,
			RestoredFrom: e.RestoredFrom,
			Audit: api.AuditInfo{
				Device:  e.Device,
				IP:      e.IP,
				Country: e.Country,
			},
		})
	}

	WriteJSON(w, resp, http.StatusOK)
}

// Restore обрабатывает POST /api/v1/sync/restore
// Восстановление не переписывает историю: выбранный payload
// сохраняется как новая версия (version = now) с тегом restored_from,
// поэтому restore сам попадает в аудит и сам может быть восстановлен.
func (h *SyncHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	var req api.RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, "invalid request body", "", http.StatusBadRequest)
		return
	}

	payload, err := h.storage.GetVersionPayload(ctx, userID, req.Version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionNotFound) {
			WriteError(w, "version not found", api.CodeVersionNotFound, http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get version payload", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	dataset, err := codec.Decompress(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "historical payload is corrupt",
			slog.String("user_id", userID),
			slog.Int64("version", req.Version),
			slog.Any("error", err))
		WriteError(w, "version payload is corrupt", api.CodeVersionNotFound, http.StatusNotFound)
		return
	}

	now := time.Now()
	newVersion := now.Unix()
	dataset.Version = newVersion

	newPayload, err := codec.Compress(dataset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compress restored dataset", slog.Any("error", err))
		WriteError(w, "internal server error", "", http.StatusInternalServerError)
		return
	}

	auditInfo := audit.FromRequest(r)
	description := fmt.Sprintf("restored from version %d", req.Version)

	snapshot := &models.Snapshot{
		UserID:      userID,
		Payload:     newPayload,
		Version:     newVersion,
		UpdatedAt:   now,
		Description: description,
		Device:      auditInfo.Device,
		IP:          auditInfo.IP,
		Country:     auditInfo.Country,
	}

	if err := h.storage.PutCurrent(ctx, snapshot); err != nil {
		h.logger.ErrorContext(ctx, "failed to put restored snapshot", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	entry := &models.VersionHistoryEntry{
		Version:      newVersion,
		CreatedAt:    now,
		Description:  description,
		RestoredFrom: req.Version,
		Device:       auditInfo.Device,
		IP:           auditInfo.IP,
		Country:      auditInfo.Country,
	}

	if err := h.storage.AppendVersion(ctx, userID, entry, newPayload); err != nil {
		h.logger.ErrorContext(ctx, "failed to append restored version", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	h.notifier.Enqueue(userID, api.StreamMessage{
		Type:      api.StreamDatasetUpdated,
		Key:       fmt.Sprintf("update-%d", newVersion),
		Version:   newVersion,
		Timestamp: now,
	})

	h.logger.InfoContext(ctx, "dataset restored",
		slog.String("user_id", userID),
		slog.Int64("from_version", req.Version),
		slog.Int64("new_version", newVersion))

	WriteJSON(w, api.LoadResponse{
		Dataset:     *dataset,
		HasData:     true,
		LastUpdated: now,
	}, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/sync
// Явное невосстановимое удаление всех данных; идемпотентно
func (h *SyncHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		WriteError(w, "unauthorized", "", http.StatusUnauthorized)
		return
	}

	if err := h.storage.DeleteAll(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete user data", slog.Any("error", err))
		WriteError(w, "store unavailable", api.CodeStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	now := time.Now()
	h.notifier.Enqueue(userID, api.StreamMessage{
		Type:      api.StreamDatasetDeleted,
		Key:       fmt.Sprintf("delete-%d", now.UnixNano()),
		Timestamp: now,
	})

	h.logger.InfoContext(ctx, "user data deleted", slog.String("user_id", userID))

	WriteJSON(w, api.DeleteResponse{Success: true}, http.StatusOK)
}
