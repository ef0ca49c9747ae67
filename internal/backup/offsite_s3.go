package backup

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3OffsiteTarget replicates archives to an S3 bucket.
type S3OffsiteTarget struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3OffsiteTarget creates an S3 offsite target. When no static credentials
// are configured the default AWS credential chain applies.
func NewS3OffsiteTarget(config *S3Target) (*S3OffsiteTarget, error) {
	if config == nil || config.Bucket == "" {
		return nil, NewConfigError("s3 offsite target requires a bucket", nil)
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewIOError("failed to create AWS session", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "archives/"
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3OffsiteTarget{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: prefix,
	}, nil
}

// Upload streams the archive file to the bucket.
func (st *S3OffsiteTarget) Upload(ctx context.Context, localPath, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for upload: %w", err)
	}
	defer file.Close()

	key := st.prefix + name
	_, err = st.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"archive-name": aws.String(name),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to S3: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", st.bucket, key), nil
}

// GetType returns the provider type.
func (st *S3OffsiteTarget) GetType() OffsiteProvider {
	return OffsiteProviderS3
}
