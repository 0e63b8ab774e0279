// Package s3archive stores per-cycle price snapshots in S3-compatible object storage.
package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

const tracerName = "arbitrage.s3archive"

// ClientConfig configures the S3 client. Empty keys fall back to the default credential chain.
type ClientConfig struct {
	Bucket       string
	Region       string
	Prefix       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ObjectPutter is the slice of *s3.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ app.SnapshotArchiver = (*Archiver)(nil)

// Archiver writes one JSON document per cycle.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	tracer trace.Tracer
}

// NewClient builds an S3 client for cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, apperror.Configuration("s3: bucket and region are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("s3: load aws config"), apperror.WithCause(err))
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// NewArchiver creates an archiver writing under prefix in bucket.
func NewArchiver(client ObjectPutter, bucket, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		tracer: otel.Tracer(tracerName),
	}
}

// Archive implements app.SnapshotArchiver.
func (a *Archiver) Archive(ctx context.Context, snap *pricingDomain.Snapshot, rep domain.CycleReport) error {
	key := objectKey(a.prefix, snap.CycleID(), snap.StartedAt())
	ctx, span := a.tracer.Start(ctx, "s3.archive_snapshot",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	body, err := json.Marshal(buildDocument(snap, rep))
	if err != nil {
		return apperror.Internal(apperror.CodeInternalError, "s3: encode snapshot", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object failed")
		return apperror.Internal(apperror.CodeStorageFailure, "s3: put "+key, err)
	}
	return nil
}

// objectKey partitions by UTC date so a day's cycles list together.
func objectKey(prefix string, cycleID uint64, startedAt time.Time) string {
	t := startedAt.UTC()
	name := fmt.Sprintf("%s/cycle-%08d-%s.json", t.Format("2006/01/02"), cycleID, t.Format("150405"))
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

type quoteDoc struct {
	Venue      string    `json:"venue"`
	Price      string    `json:"price"`
	ObservedAt time.Time `json:"observedAt"`
}

type failureDoc struct {
	Token string `json:"token"`
	Venue string `json:"venue"`
	Code  string `json:"code"`
	Error string `json:"error,omitempty"`
}

type snapshotDoc struct {
	CycleID       uint64                `json:"cycleId"`
	StartedAt     time.Time             `json:"startedAt"`
	CompletedAt   time.Time             `json:"completedAt"`
	GasPriceGwei  *string               `json:"gasPriceGwei"`
	Quotes        map[string][]quoteDoc `json:"quotes"`
	Failures      []failureDoc          `json:"failures"`
	Detected      int                   `json:"detected"`
	Opportunities []domain.Opportunity  `json:"opportunities"`
}

func buildDocument(snap *pricingDomain.Snapshot, rep domain.CycleReport) snapshotDoc {
	doc := snapshotDoc{
		CycleID:       snap.CycleID(),
		StartedAt:     snap.StartedAt().UTC(),
		CompletedAt:   snap.CompletedAt().UTC(),
		Quotes:        make(map[string][]quoteDoc),
		Failures:      []failureDoc{},
		Detected:      rep.Detected,
		Opportunities: rep.Opportunities,
	}
	if doc.Opportunities == nil {
		doc.Opportunities = []domain.Opportunity{}
	}
	if gwei, ok := snap.GasPriceGwei(); ok {
		g := gwei.String()
		doc.GasPriceGwei = &g
	}
	for _, tok := range snap.Tokens() {
		quotes := snap.Quotes(tok)
		docs := make([]quoteDoc, 0, len(quotes))
		for _, q := range quotes {
			docs = append(docs, quoteDoc{Venue: q.Venue, Price: q.Price.String(), ObservedAt: q.ObservedAt.UTC()})
		}
		doc.Quotes[tok.Symbol()] = docs
	}
	for _, f := range snap.Failures() {
		fd := failureDoc{Token: f.Token.Symbol(), Venue: f.Venue, Code: string(f.Code)}
		if f.Err != nil {
			fd.Error = f.Err.Error()
		}
		doc.Failures = append(doc.Failures, fd)
	}
	return doc
}

func normaliseEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}
