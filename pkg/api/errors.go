package api

// Машиночитаемые коды ошибок. Клиент ветвится по Code, не по тексту.
const (
	// CodeInvalidToken - токен не прошел проверку подписи или истек
	CodeInvalidToken = "invalid_token"
	// CodeReauthRequired - токен старого формата (без session_id);
	// клиент обязан принудительно разлогиниться, а не повторять запрос
	CodeReauthRequired = "reauth_required"
	// CodeSessionNotFound - сессия токена удалена или отозвана
	CodeSessionNotFound = "session_not_found"
	// CodeTokenMismatch - сессия существует, но хранит другой токен (ротация)
	CodeTokenMismatch = "token_mismatch"
	// CodeCannotRevokeSelf - нельзя отозвать собственную текущую сессию
	CodeCannotRevokeSelf = "cannot_revoke_self"
	// CodeStoreUnavailable - хранилище недоступно, повтор по обычному циклу
	CodeStoreUnavailable = "store_unavailable"
	// CodeVersionNotFound - запрошенная историческая версия не найдена
	CodeVersionNotFound = "version_not_found"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`          // описание ошибки
	Code  string `json:"code,omitempty"` // машиночитаемый код
}
