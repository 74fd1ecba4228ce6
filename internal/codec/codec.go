// Package codec реализует обратимое преобразование между dataset и его
// компактным транспортным/хранимым представлением:
// канонический JSON -> gzip -> base64 строка.
//
// Пара Compress/Decompress - чистые функции без побочных эффектов.
// Compress не обязан быть байтово-стабильным между вызовами, но
// Decompress(Compress(d)) == d выполняется всегда.
package codec

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// ErrCorruptPayload indicates that a blob cannot be decoded, decompressed
// or parsed back into a dataset.
var ErrCorruptPayload = errors.New("corrupt payload")

// Compress сериализует dataset в канонический JSON, сжимает gzip
// и кодирует результат в транспортно-безопасную base64 строку.
func Compress(dataset *api.Dataset) (string, error) {
	raw, err := json.Marshal(dataset)
	if err != nil {
		return "", fmt.Errorf("failed to marshal dataset: %w", err)
	}

	var compressed bytes.Buffer
	writer, err := gzip.NewWriterLevel(&compressed, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(raw); err != nil {
		return "", fmt.Errorf("failed to compress dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip stream: %w", err)
	}

	return base64.StdEncoding.EncodeToString(compressed.Bytes()), nil
}

// Decompress - обратное преобразование. Любая стадия, не сумевшая
// разобрать вход, возвращает ErrCorruptPayload (с обернутой причиной).
func Decompress(blob string) (*api.Dataset, error) {
	compressed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %w", ErrCorruptPayload, err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid gzip stream: %w", ErrCorruptPayload, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decompress: %w", ErrCorruptPayload, err)
	}

	var dataset api.Dataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return nil, fmt.Errorf("%w: invalid dataset JSON: %w", ErrCorruptPayload, err)
	}

	return &dataset, nil
}
