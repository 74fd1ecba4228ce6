package api

import (
	"encoding/json"
	"time"
)

// Category представляет одну категорию закладок на стартовой странице
type Category struct {
	ID   string `json:"id"`   // уникальный идентификатор категории
	Name string `json:"name"` // отображаемое имя
	Icon string `json:"icon"` // иконка (имя или data-URL)
}

// Site представляет одну закладку внутри категории
type Site struct {
	Name        string `json:"name"`        // отображаемое имя
	URL         string `json:"url"`         // адрес сайта
	Icon        string `json:"icon"`        // иконка (имя или data-URL)
	Description string `json:"description"` // опциональное описание
}

// Dataset - полное синхронизируемое состояние пользователя.
// Это единая wire-схема, общая для клиента и сервера: обе стороны
// сериализуют ровно эту структуру.
type Dataset struct {
	Categories []Category                 `json:"categories"` // упорядоченный список категорий
	Sites      map[string][]Site          `json:"sites"`      // category ID -> список закладок
	Settings   map[string]json.RawMessage `json:"settings"`   // непрозрачные настройки (тема и т.д.)
	Version    int64                      `json:"version"`    // монотонно растущая версия
}

// SaveRequest представляет запрос на сохранение dataset
type SaveRequest struct {
	Dataset Dataset `json:"dataset"`
	Version int64   `json:"version"` // версия, объявленная клиентом (обычно local+1)
}

// SaveResponse представляет ответ на успешное сохранение
type SaveResponse struct {
	Version     int64     `json:"version"`      // версия, под которой данные сохранены
	LastUpdated time.Time `json:"last_updated"` // серверное время записи
}

// LoadResponse представляет ответ с текущим dataset
type LoadResponse struct {
	Dataset     Dataset   `json:"dataset"`
	HasData     bool      `json:"has_data"`     // false если пользователь еще ничего не сохранял
	LastUpdated time.Time `json:"last_updated"` // нулевое время если has_data=false
}

// StatusResponse - дешевый ответ для polling, без полного payload
type StatusResponse struct {
	HasData     bool      `json:"has_data"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// AuditInfo - метаданные устройства/сети, записанные при сохранении.
// IP уже замаскирован на сервере; поля используются только для аудита,
// никогда для логики конфликтов.
type AuditInfo struct {
	Device  string `json:"device"`  // класс устройства: desktop, mobile, tablet, bot, unknown
	IP      string `json:"ip"`      // замаскированный IP адрес
	Country string `json:"country"` // код страны из заголовка прокси, может быть пустым
}

// VersionInfo описывает одну запись в истории версий
type VersionInfo struct {
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Description  string    `json:"description"`             // человекочитаемое описание snapshot
	RestoredFrom int64     `json:"restored_from,omitempty"` // версия-источник, если это restore
	Audit        AuditInfo `json:"audit"`
}

// VersionListResponse представляет историю версий (от новых к старым)
type VersionListResponse struct {
	Versions []VersionInfo `json:"versions"`
}

// RestoreRequest представляет запрос на восстановление исторической версии
type RestoreRequest struct {
	Version int64 `json:"version"`
}

// DeleteResponse представляет ответ на удаление всех данных
type DeleteResponse struct {
	Success bool `json:"success"`
}
