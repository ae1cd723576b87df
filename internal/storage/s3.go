// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage archives job reports to S3-compatible object storage.
// It wraps the AWS SDK v2 with path-style addressing so it works against
// CEPH, Hetzner, MinIO and AWS alike.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"redirclean/internal/models"
)

// ErrReportNotFound is returned when no report was archived under the key.
var ErrReportNotFound = errors.New("report not found")

// objectAPI is the subset of the S3 client the archive uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client uploads job reports into one bucket under a key prefix.
type Client struct {
	s3     objectAPI
	bucket string
	prefix string
}

// New creates a storage client. It returns (nil, nil) when the endpoint or
// credentials are empty so the service can run without an archive.
func New(endpoint, region, accessKey, secretKey, bucket, prefix string) (*Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	s3Client := s3.New(s3.Options{
		Region:                     region,
		BaseEndpoint:               aws.String(strings.TrimRight(endpoint, "/")),
		Credentials:                credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return newClient(s3Client, bucket, prefix), nil
}

func newClient(api objectAPI, bucket, prefix string) *Client {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Client{s3: api, bucket: bucket, prefix: prefix}
}

// ReportKey returns the object key of a job report. Completion and
// rollback produce separate objects.
func (c *Client) ReportKey(jobID string, status models.JobStatus) string {
	return c.prefix + jobID + "/" + string(status) + ".json"
}

// ArchiveJob uploads the job as indented JSON. The caller passes the
// report form of the job, without content snapshots.
func (c *Client) ArchiveJob(ctx context.Context, job *models.Job) error {
	body, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job report %s: %w", job.ID, err)
	}

	key := c.ReportKey(job.ID, job.Status)
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		Metadata: map[string]string{
			"job-id":     job.ID,
			"job-status": string(job.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// Report downloads and decodes an archived job report.
func (c *Client) Report(ctx context.Context, jobID string, status models.JobStatus) (*models.Job, error) {
	key := c.ReportKey(jobID, status)
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, fmt.Errorf("%s: %w", key, ErrReportNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("s3 download %s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body %s/%s: %w", c.bucket, key, err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job report %s: %w", key, err)
	}
	return &job, nil
}
