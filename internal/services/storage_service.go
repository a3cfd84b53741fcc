package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinioClient connects to the object store backing document uploads.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// StorageService measures per-organization object storage. Documents are laid
// out under a per-organization prefix inside a single bucket.
type StorageService interface {
	EnsureBucketExists(ctx context.Context) error
	// OrganizationUsageMB sums object sizes under the organization prefix,
	// rounded up to whole megabytes.
	OrganizationUsageMB(ctx context.Context, organizationID uuid.UUID) (int, error)
}

type minioStorageService struct {
	client     *minio.Client
	bucketName string
}

func NewStorageService(client *minio.Client, bucketName string) StorageService {
	return &minioStorageService{
		client:     client,
		bucketName: bucketName,
	}
}

func (s *minioStorageService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucketName, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucketName, err)
	}
	log.Printf("Created storage bucket %s", s.bucketName)
	return nil
}

func (s *minioStorageService) OrganizationUsageMB(ctx context.Context, organizationID uuid.UUID) (int, error) {
	prefix := organizationID.String() + "/"
	var totalBytes int64
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return 0, fmt.Errorf("failed to list objects for organization %s: %w", organizationID, object.Err)
		}
		totalBytes += object.Size
	}

	const bytesPerMB = 1024 * 1024
	mb := int((totalBytes + bytesPerMB - 1) / bytesPerMB)
	return mb, nil
}
