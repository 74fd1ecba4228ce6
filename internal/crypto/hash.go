package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashAuthKey хеширует auth_key через SHA256.
// Хеш детерминированный: клиент и сервер считают его одинаково,
// сервер хранит только хеш, сам auth_key сервер не видит в открытом виде
// дольше одного запроса.
func HashAuthKey(authKey []byte) (string, error) {
	if len(authKey) == 0 {
		return "", fmt.Errorf("auth key cannot be empty")
	}

	hash := sha256.Sum256(authKey)
	return hex.EncodeToString(hash[:]), nil
}
