package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ignatzorin/services-marketplace/internal/logger"
)

// MinIOStorage хранит загруженные файлы в S3-совместимом бакете.
type MinIOStorage struct {
	client         *minio.Client
	bucketName     string
	maxUploadBytes int64
}

// NewMinIOStorage создаёт клиент и бакет, если его ещё нет.
func NewMinIOStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, maxUploadMB int64) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать клиент minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось проверить бакет: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: не удалось создать бакет: %w", err)
		}
		if logger.Log != nil {
			logger.Log.WithField("bucket", bucketName).Info("Бакет создан")
		}
	}

	return &MinIOStorage{
		client:         client,
		bucketName:     bucketName,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save загружает файл в каталог folder и возвращает ключ объекта.
func (m *MinIOStorage) Save(ctx context.Context, folder, filename string, r io.Reader, size int64) (string, error) {
	if size > m.maxUploadBytes {
		return "", ErrTooLarge
	}

	contentType, body, err := Detect(r)
	if err != nil {
		return "", err
	}

	key := objectKey(folder, filename)
	if _, err := m.client.PutObject(ctx, m.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("storage: не удалось загрузить файл: %w", err)
	}

	if logger.Log != nil {
		logger.Log.WithField("key", key).Debug("Файл загружен")
	}
	return key, nil
}

// Delete удаляет объект. Отсутствующий объект не считается ошибкой.
func (m *MinIOStorage) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// URL временная ссылка на объект.
func (m *MinIOStorage) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucketName, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось получить ссылку: %w", err)
	}
	return u.String(), nil
}

// Exists проверяет наличие объекта.
func (m *MinIOStorage) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("storage: не удалось проверить файл: %w", err)
	}
	return true, nil
}
