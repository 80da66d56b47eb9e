package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Settings beschreibt einen S3-kompatiblen Endpunkt (z.B. Strato HiDrive, MinIO).
type S3Settings struct {
	URL    string
	Region string
	Key    string
	Secret string
}

// NewS3Client erstellt einen S3-Client für einen festen Endpunkt.
func NewS3Client(ctx context.Context, s S3Settings) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               s.URL,
				SigningRegion:     s.Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.Key, s.Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// ObjectAPI ist der Ausschnitt des S3-Clients, den Bucket benötigt.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Bucket kapselt Uploads und Rotation in einem Bucket.
type Bucket struct {
	Client  ObjectAPI
	Name    string
	BaseURL string
	Logger  *zap.Logger
}

func NewBucket(client ObjectAPI, name, baseURL string, logger *zap.Logger) *Bucket {
	return &Bucket{Client: client, Name: name, BaseURL: strings.TrimRight(baseURL, "/"), Logger: logger}
}

// Put lädt data unter key hoch und gibt den Link zurück.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.Name),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", b.BaseURL, b.Name, key), nil
}

// UploadJSON serialisiert v und lädt es als application/json hoch.
func (b *Bucket) UploadJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return b.Put(ctx, key, data, "application/json")
}

// Rotate behält die keep neuesten Objekte unter prefix und löscht den Rest.
// Einzelne Löschfehler werden geloggt; zurückgegeben wird die Zahl gelöschter Objekte.
func (b *Bucket) Rotate(ctx context.Context, prefix string, keep int) (int, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(b.Name)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	output, err := b.Client.ListObjectsV2(ctx, input)
	if err != nil {
		return 0, err
	}
	objects := output.Contents
	if len(objects) <= keep {
		b.Logger.Info("Keine Rotation nötig", zap.Int("objects", len(objects)), zap.Int("keep", keep))
		return 0, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})

	deleted := 0
	for _, obj := range objects[keep:] {
		b.Logger.Info("Lösche altes Objekt", zap.String("key", aws.ToString(obj.Key)))
		_, err := b.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.Name),
			Key:    obj.Key,
		})
		if err != nil {
			b.Logger.Warn("Löschen fehlgeschlagen", zap.String("key", aws.ToString(obj.Key)), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
