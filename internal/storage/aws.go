package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/domain"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type itemPutter interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// IndexItem is the DynamoDB row pointing at one archived snapshot.
type IndexItem struct {
	PK                    string  `dynamodbav:"PK"`
	SK                    string  `dynamodbav:"SK"`
	ProfileID             string  `dynamodbav:"ProfileID"`
	Version               int64   `dynamodbav:"Version"`
	OverallScore          int     `dynamodbav:"OverallScore"`
	EngagementScore       int     `dynamodbav:"EngagementScore"`
	UrgencyScore          int     `dynamodbav:"UrgencyScore"`
	ValueScore            int     `dynamodbav:"ValueScore"`
	ConversionProbability float64 `dynamodbav:"ConversionProbability"`
	ObjectKey             string  `dynamodbav:"ObjectKey"`
	TTL                   int64   `dynamodbav:"TTL,omitempty"`
}

// AWSArchive writes snapshots to S3 and indexes them in DynamoDB.
type AWSArchive struct {
	s3       objectPutter
	dynamoDB itemPutter
	bucket   string
	prefix   string
	table    string
	ttl      time.Duration
	now      func() time.Time
}

// NewAWSArchive loads the default AWS config for the archive region. Static
// credentials are used when an access key is configured.
func NewAWSArchive(ctx context.Context, cfg config.ArchiveConfig) (*AWSArchive, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newAWSArchive(s3.NewFromConfig(awsCfg), dynamodb.NewFromConfig(awsCfg), cfg), nil
}

func newAWSArchive(s3Client objectPutter, db itemPutter, cfg config.ArchiveConfig) *AWSArchive {
	return &AWSArchive{
		s3:       s3Client,
		dynamoDB: db,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		table:    cfg.Table,
		ttl:      time.Duration(cfg.TTLDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Archive uploads the view and then writes its index item. The index is
// skipped when no table is configured.
func (a *AWSArchive) Archive(ctx context.Context, orgID string, view *domain.ProfileView) error {
	body, err := encodeSnapshot(view)
	if err != nil {
		return err
	}
	key := objectKey(a.prefix, orgID, view)

	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("putting snapshot to S3: %w", err)
	}
	if a.table == "" {
		return nil
	}

	p := view.Profile
	item := IndexItem{
		PK:                    orgID + "#" + p.Subject().Key(),
		SK:                    snapshotStamp(p.LastAnalyzedAt),
		ProfileID:             p.ID,
		Version:               p.Version,
		OverallScore:          p.Overall,
		EngagementScore:       p.Engagement,
		UrgencyScore:          p.Urgency,
		ValueScore:            p.Value,
		ConversionProbability: p.ConversionProbability,
		ObjectKey:             key,
	}
	if a.ttl > 0 {
		item.TTL = a.now().Add(a.ttl).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling index item: %w", err)
	}
	if _, err := a.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("putting index item to DynamoDB: %w", err)
	}
	return nil
}
