package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

type fakeObjects struct {
	puts         map[string][]byte
	contentTypes map[string]string
	listed       []types.Object
	deleted      []string
	deleteErr    map[string]error
	putErr       error
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts, f.contentTypes = map[string][]byte{}, map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = body
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{Contents: f.listed}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.deleteErr[key]; err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestBucketUploadJSON(t *testing.T) {
	objects := &fakeObjects{}
	b := NewBucket(objects, "dossiers", "https://s3.example.org/", zap.NewNop())

	link, err := b.UploadJSON(context.Background(), "dossiers/c1/j1.json", map[string]string{"outcome": "MIXED"})
	if err != nil {
		t.Fatalf("UploadJSON: %v", err)
	}
	if link != "https://s3.example.org/dossiers/dossiers/c1/j1.json" {
		t.Fatalf("link = %s", link)
	}
	var got map[string]string
	if err := json.Unmarshal(objects.puts["dossiers/c1/j1.json"], &got); err != nil || got["outcome"] != "MIXED" {
		t.Fatalf("unexpected body %s (%v)", objects.puts["dossiers/c1/j1.json"], err)
	}
	if objects.contentTypes["dossiers/c1/j1.json"] != "application/json" {
		t.Fatalf("content type = %s", objects.contentTypes["dossiers/c1/j1.json"])
	}
}

func TestBucketPutError(t *testing.T) {
	b := NewBucket(&fakeObjects{putErr: errors.New("403")}, "b", "https://s3", zap.NewNop())
	if _, err := b.Put(context.Background(), "k", []byte("x"), ""); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestBucketRotateKeepsNewest(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	obj := func(key string, age int) types.Object {
		return types.Object{Key: aws.String(key), LastModified: aws.Time(base.Add(-time.Duration(age) * 24 * time.Hour))}
	}
	objects := &fakeObjects{
		listed: []types.Object{
			obj("backups/d3.sql.gz", 3), obj("backups/d0.sql.gz", 0), obj("backups/d5.sql.gz", 5),
			obj("backups/d1.sql.gz", 1), obj("backups/d4.sql.gz", 4),
		},
		deleteErr: map[string]error{"backups/d5.sql.gz": errors.New("denied")},
	}
	b := NewBucket(objects, "b", "https://s3", zap.NewNop())

	deleted, err := b.Rotate(context.Background(), "backups/", 2)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	sort.Strings(objects.deleted)
	if len(objects.deleted) != 2 || objects.deleted[0] != "backups/d3.sql.gz" || objects.deleted[1] != "backups/d4.sql.gz" {
		t.Fatalf("unexpected deletions %v", objects.deleted)
	}
}

func TestBucketRotateNothingToDo(t *testing.T) {
	objects := &fakeObjects{listed: []types.Object{{Key: aws.String("a")}}}
	deleted, err := NewBucket(objects, "b", "https://s3", zap.NewNop()).Rotate(context.Background(), "", 7)
	if err != nil || deleted != 0 || len(objects.deleted) != 0 {
		t.Fatalf("expected no-op, got %d %v %v", deleted, err, objects.deleted)
	}
}
