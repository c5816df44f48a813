package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ImageArchive copies generated images to object storage.
type ImageArchive interface {
	Enabled() bool
	ArchiveImage(ctx context.Context, path string) (string, error)
}

type R2Service struct {
	config cfg.Config
	client *s3.Client
}

func NewR2Service(c cfg.Config) *R2Service {
	return &R2Service{config: c}
}

func (r *R2Service) Enabled() bool {
	return r.config.R2.AccountID != "" && r.config.R2.BucketName != "" && r.config.R2.AccessKey != ""
}

func (r *R2Service) r2Client(ctx context.Context) (*s3.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	})
	return r.client, nil
}

func (r *R2Service) UploadToR2(ctx context.Context, key string, file []byte, contentType string) error {
	client, err := r.r2Client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ArchiveImage uploads a local image under a random key and returns its
// public URL.
func (r *R2Service) ArchiveImage(ctx context.Context, path string) (string, error) {
	kind, err := utils.DetectImage(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("images/%s.%s", id, kind.Extension)

	if err := r.UploadToR2(ctx, key, data, kind.MIME.Value); err != nil {
		return "", err
	}
	return strings.TrimRight(r.config.R2.PublicURL, "/") + "/" + key, nil
}
