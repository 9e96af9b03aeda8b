package storage

import (
	"context"
	"fmt"
)

type Options struct {
	Driver   string // none|local|s3
	LocalDir string
	S3Region string
	S3Bucket string
	S3Prefix string
}

type FactoryResult struct {
	Driver  string
	Storage Storage // nil for "none"
}

func FromOptions(ctx context.Context, o Options) (FactoryResult, error) {
	switch o.Driver {
	case "", "none":
		return FactoryResult{Driver: "none"}, nil

	case "local":
		dir := o.LocalDir
		if dir == "" {
			dir = "./storage/webhooks"
		}
		return FactoryResult{Driver: "local", Storage: NewLocal(dir)}, nil

	case "s3":
		if o.S3Region == "" || o.S3Bucket == "" {
			return FactoryResult{}, fmt.Errorf("S3 config missing: S3_REGION, S3_BUCKET required")
		}
		s, err := NewS3(ctx, S3Config{Region: o.S3Region, Bucket: o.S3Bucket, Prefix: o.S3Prefix})
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "s3", Storage: s}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown WEBHOOK_ARCHIVE_DRIVER: %s", o.Driver)
	}
}
