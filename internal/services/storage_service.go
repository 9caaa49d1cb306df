// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/limey-tt/limey-backend/internal/config"
)

var ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")

// Upload categories.
const (
	UploadVideos     = "videos"
	UploadThumbnails = "thumbnails"
	UploadAvatars    = "avatars"
	UploadAds        = "ads"
)

type StorageService struct {
	s3Client  s3iface.S3API
	bucket    string
	region    string
	cdnURL    string
	localDir  string
	publicURL string
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	Folder  string
	MaxSize int64 // in bytes
	// AllowedTypes are MIME prefixes matched against the sniffed content type.
	AllowedTypes []string
	IsPublic     bool
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	s := &StorageService{
		bucket:    cfg.AWS.S3Bucket,
		region:    cfg.AWS.Region,
		cdnURL:    strings.TrimRight(cfg.AWS.CloudFrontURL, "/"),
		localDir:  cfg.AWS.LocalUploadDir,
		publicURL: strings.TrimRight(cfg.Server.PublicURL, "/"),
	}

	if cfg.AWS.AccessKeyID == "" {
		logrus.WithField("dir", s.localDir).Info("S3 not configured, storing uploads locally")
		return s, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	s.s3Client = s3.New(sess)
	return s, nil
}

// LocalDir is the directory served under /uploads when S3 is not configured.
func (s *StorageService) LocalDir() string {
	if s.s3Client != nil {
		return ""
	}
	return s.localDir
}

// Upload sniffs the content type of r, enforces the size and type limits of
// opts and stores the object.
func (s *StorageService) Upload(ctx context.Context, r io.Reader, options UploadOptions) (*UploadResult, error) {
	reader := r
	if options.MaxSize > 0 {
		reader = io.LimitReader(r, options.MaxSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if options.MaxSize > 0 && int64(len(data)) > options.MaxSize {
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	if !allowedType(mtype, options.AllowedTypes) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, mtype.String())
	}

	key := s.generateKey(options.Folder, mtype.Extension())
	contentType := mtype.String()

	if s.s3Client != nil {
		return s.uploadToS3(ctx, data, key, contentType, options.IsPublic)
	}
	return s.uploadToLocal(data, key, contentType)
}

func allowedType(mtype *mimetype.MIME, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for m := mtype; m != nil; m = m.Parent() {
		for _, prefix := range allowed {
			if strings.HasPrefix(m.String(), prefix) {
				return true
			}
		}
	}
	return false
}

func (s *StorageService) uploadToS3(ctx context.Context, data []byte, key, contentType string, isPublic bool) (*UploadResult, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if isPublic {
		params.ACL = aws.String("public-read")
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.objectURL(key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToLocal(data []byte, key, contentType string) (*UploadResult, error) {
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	return &UploadResult{
		URL:      fmt.Sprintf("%s/uploads/%s", s.publicURL, key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	if s.s3Client == nil {
		err := os.Remove(filepath.Join(s.localDir, filepath.FromSlash(key)))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete local file: %w", err)
		}
		return nil
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// KeyFromURL recovers the object key from a URL produced by Upload.
func (s *StorageService) KeyFromURL(url string) (string, bool) {
	for _, base := range []string{s.cdnURL, s.s3BaseURL(), s.publicURL + "/uploads"} {
		if base == "" {
			continue
		}
		if strings.HasPrefix(url, base+"/") {
			return strings.TrimPrefix(url, base+"/"), true
		}
	}
	return "", false
}

func (s *StorageService) GetDefaultUploadOptions(category string) UploadOptions {
	switch category {
	case UploadVideos:
		return UploadOptions{
			Folder:       "videos",
			MaxSize:      200 * 1024 * 1024, // 200MB
			AllowedTypes: []string{"video/"},
			IsPublic:     true,
		}
	case UploadThumbnails:
		return UploadOptions{
			Folder:       "thumbnails",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{"image/"},
			IsPublic:     true,
		}
	case UploadAvatars:
		return UploadOptions{
			Folder:       "avatars",
			MaxSize:      2 * 1024 * 1024, // 2MB
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
			IsPublic:     true,
		}
	case UploadAds:
		return UploadOptions{
			Folder:       "ads",
			MaxSize:      50 * 1024 * 1024, // 50MB
			AllowedTypes: []string{"image/", "video/"},
			IsPublic:     true,
		}
	default:
		return UploadOptions{
			Folder:       "general",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{"image/"},
			IsPublic:     false,
		}
	}
}

func (s *StorageService) generateKey(folder, ext string) string {
	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, uuid.New().String(), ext)

	if folder != "" {
		return folder + "/" + filename
	}
	return filename
}

func (s *StorageService) objectURL(key string) string {
	if s.cdnURL != "" {
		return s.cdnURL + "/" + key
	}
	return s.s3BaseURL() + "/" + key
}

func (s *StorageService) s3BaseURL() string {
	if s.bucket == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, s.region)
}
