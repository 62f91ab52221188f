package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"nva-backoffice/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	awscreds "github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage stores uploaded photos and returns their public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type StorageService struct {
	cfg         *config.Config
	s3Client    *s3.S3
	minioClient *minio.Client
	useMinIO    bool
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	service := &StorageService{cfg: cfg}

	// Check if MinIO is configured
	if cfg.MinIOEndpoint != "" {
		service.useMinIO = true
		minioClient, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO client: %w", err)
		}
		service.minioClient = minioClient
		return service, nil
	}

	// Fall back to AWS S3
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.AWSRegion),
		Credentials: awscreds.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	service.s3Client = s3.New(sess)
	return service, nil
}

func (s *StorageService) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.useMinIO {
		_, err := s.minioClient.PutObject(ctx, s.cfg.S3Bucket, key, body, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload to MinIO: %w", err)
		}

		// Build the public URL
		protocol := "http"
		if s.cfg.MinIOUseSSL {
			protocol = "https"
		}
		return fmt.Sprintf("%s://%s/%s/%s", protocol, s.cfg.MinIOEndpoint, s.cfg.S3Bucket, key), nil
	}

	// S3 needs a seekable body
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.S3Bucket, s.cfg.AWSRegion, key), nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	if s.useMinIO {
		if err := s.minioClient.RemoveObject(ctx, s.cfg.S3Bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to delete from MinIO: %w", err)
		}
		return nil
	}
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *StorageService) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	if s.useMinIO {
		u, err := s.minioClient.PresignedGetObject(ctx, s.cfg.S3Bucket, key, expiration, nil)
		if err != nil {
			return "", fmt.Errorf("failed to generate presigned URL: %w", err)
		}
		return u.String(), nil
	}
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	u, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u, nil
}

// EnsureBucket creates the photo bucket when it does not exist yet.
func (s *StorageService) EnsureBucket(ctx context.Context) error {
	if s.useMinIO {
		exists, err := s.minioClient.BucketExists(ctx, s.cfg.S3Bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			if err := s.minioClient.MakeBucket(ctx, s.cfg.S3Bucket, minio.MakeBucketOptions{Region: s.cfg.AWSRegion}); err != nil {
				return fmt.Errorf("failed to create MinIO bucket: %w", err)
			}
		}
		return nil
	}

	// S3 reports an existing bucket as an error
	_, err := s.s3Client.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.cfg.S3Bucket)})
	if err != nil && !strings.Contains(err.Error(), s3.ErrCodeBucketAlreadyOwnedByYou) {
		return fmt.Errorf("failed to create S3 bucket: %w", err)
	}
	return nil
}

// Upload is a validated file ready for storage.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// sniff reads the head of the upload to detect its content type and returns
// a reader that still yields the whole body.
func sniff(u Upload) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), u.Body), nil
}

func objectKey(prefix string, ownerID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d/%s%s", prefix, ownerID, uuid.NewString(), ext)
}
