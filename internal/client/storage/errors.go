package storage

import "errors"

// Ошибки клиентского хранилища
var (
	// ErrAuthNotFound - сохраненной авторизации нет (не залогинен)
	ErrAuthNotFound = errors.New("auth data not found")
	// ErrNoCache - локальной копии dataset нет
	ErrNoCache = errors.New("no cached dataset")
)
