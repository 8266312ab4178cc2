// Package s3store keeps the snapshot as a single JSON object in an
// S3-compatible bucket (AWS S3, MinIO).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) ObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectAPI is the part of *s3.Client the store needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Options struct {
	RootUser     string
	RootPassword string
	Region       string
	BaseEndpoint string
	Bucket       string
	Key          string
}

type Store struct {
	api    ObjectAPI
	bucket string
	key    string
}

func New(api ObjectAPI, bucket, key string) *Store {
	return &Store{api: api, bucket: bucket, key: key}
}

// NewFromOptions builds an S3 client with static credentials. A non-empty
// BaseEndpoint switches to path-style addressing, which MinIO expects.
func NewFromOptions(ctx context.Context, o Options) (*Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.RootUser,
			o.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	api := newS3ClientFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
			opts.UsePathStyle = true
		}
	})
	return New(api, o.Bucket, o.Key), nil
}

func (s *Store) Load(ctx context.Context) (*models.Snapshot, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return snapshot.Empty(), nil
		}
		return nil, common.Persistence("get snapshot object", err)
	}
	defer out.Body.Close()

	snap, err := snapshot.Decode(out.Body)
	if err != nil {
		return nil, common.Persistence("load snapshot", err)
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap *models.Snapshot) error {
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		return common.Persistence("save snapshot", err)
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/json"),
	})
	return common.Persistence("put snapshot object", err)
}
