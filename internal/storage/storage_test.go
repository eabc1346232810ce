package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/domain"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

type fakeDynamo struct {
	inputs []*dynamodb.PutItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, in)
	return &dynamodb.PutItemOutput{}, nil
}

var analyzedAt = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

func testView() *domain.ProfileView {
	return &domain.ProfileView{
		Profile: domain.IntelligenceProfile{
			ID:             "p-1",
			OrganizationID: "org-1",
			LeadID:         "l-1",
			ContactID:      "c-1",
			Scores: domain.Scores{
				Engagement: 90, Urgency: 40, Value: 100, Overall: 78,
				ConversionProbability: 0.71,
			},
			LastAnalyzedAt: analyzedAt,
			Version:        3,
		},
		Insights: []domain.Insight{{ID: "i-1", Type: "high_engagement"}},
	}
}

func gunzipView(t *testing.T, b []byte) domain.ProfileView {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	var v domain.ProfileView
	require.NoError(t, json.NewDecoder(zr).Decode(&v))
	return v
}

func TestAWSArchive_Archive(t *testing.T) {
	s3c, db := &fakeS3{}, &fakeDynamo{}
	a := newAWSArchive(s3c, db, config.ArchiveConfig{
		S3Bucket: "snapshots", S3Prefix: "lead-intelligence", Table: "lead-intel-index", TTLDays: 30,
	})
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.Archive(context.Background(), "org-1", testView()))

	require.Len(t, s3c.inputs, 1)
	in := s3c.inputs[0]
	wantKey := "lead-intelligence/org-1/lead_l-1/20260304T153000.000000000Z.json.gz"
	assert.Equal(t, "snapshots", aws.ToString(in.Bucket))
	assert.Equal(t, wantKey, aws.ToString(in.Key))
	assert.Equal(t, "gzip", aws.ToString(in.ContentEncoding))

	got := gunzipView(t, s3c.bodies[0])
	assert.Equal(t, "p-1", got.Profile.ID)
	assert.Equal(t, 78, got.Profile.Overall)
	require.Len(t, got.Insights, 1)

	require.Len(t, db.inputs, 1)
	assert.Equal(t, "lead-intel-index", aws.ToString(db.inputs[0].TableName))
	var item IndexItem
	require.NoError(t, attributevalue.UnmarshalMap(db.inputs[0].Item, &item))
	assert.Equal(t, IndexItem{
		PK:                    "org-1#lead:l-1",
		SK:                    "20260304T153000.000000000Z",
		ProfileID:             "p-1",
		Version:               3,
		OverallScore:          78,
		EngagementScore:       90,
		UrgencyScore:          40,
		ValueScore:            100,
		ConversionProbability: 0.71,
		ObjectKey:             wantKey,
		TTL:                   now.Add(30 * 24 * time.Hour).Unix(),
	}, item)
}

func TestAWSArchive_SkipsIndexWithoutTable(t *testing.T) {
	s3c, db := &fakeS3{}, &fakeDynamo{}
	a := newAWSArchive(s3c, db, config.ArchiveConfig{S3Bucket: "snapshots"})

	require.NoError(t, a.Archive(context.Background(), "org-1", testView()))
	assert.Len(t, s3c.inputs, 1)
	assert.Empty(t, db.inputs)
}

func TestAWSArchive_UploadFailure(t *testing.T) {
	s3c, db := &fakeS3{err: errors.New("access denied")}, &fakeDynamo{}
	a := newAWSArchive(s3c, db, config.ArchiveConfig{S3Bucket: "snapshots", Table: "idx"})

	err := a.Archive(context.Background(), "org-1", testView())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Empty(t, db.inputs)
}

func TestLocalArchive_Archive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archive")
	a, err := NewLocalArchive(root)
	require.NoError(t, err)

	view := testView()
	view.Profile.LeadID = ""
	require.NoError(t, a.Archive(context.Background(), "org-1", view))

	b, err := os.ReadFile(filepath.Join(root, "org-1", "contact_c-1", "20260304T153000.000000000Z.json.gz"))
	require.NoError(t, err)
	got := gunzipView(t, b)
	assert.Equal(t, "c-1", got.Profile.ContactID)
	assert.Equal(t, int64(3), got.Profile.Version)
}

func TestObjectKey_SanitizesSegments(t *testing.T) {
	view := testView()
	view.Profile.LeadID = "../x"
	assert.Equal(t, "p/_/lead_.._x/20260304T153000.000000000Z.json.gz", objectKey("p", "..", view))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	arch, err := New(ctx, config.ArchiveConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalArchive{}, arch)

	_, err = New(ctx, config.ArchiveConfig{Type: "aws"})
	assert.ErrorContains(t, err, "s3_bucket is required")

	_, err = New(ctx, config.ArchiveConfig{Type: "ftp"})
	assert.ErrorContains(t, err, `unknown type "ftp"`)
}
