package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrNoSnapshot indicates that user has never saved a dataset.
	// Это валидное "absent" состояние, не сбой хранилища.
	ErrNoSnapshot = errors.New("no snapshot")

	// ErrVersionNotFound indicates that requested history version is absent
	ErrVersionNotFound = errors.New("version not found")

	// ErrSessionNotFound indicates that session was deleted or never existed
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable indicates a storage backend failure.
	// Ошибки бэкенда никогда не глотаются молча - они всегда
	// оборачиваются в эту ошибку и доходят до вызывающего.
	ErrStoreUnavailable = errors.New("store unavailable")
)
