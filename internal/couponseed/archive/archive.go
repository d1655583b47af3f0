// Package archive zips generated batches and uploads them to the code-source bucket, where the
// ingestion pipeline picks them up.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
)

const keyTimestampLayout = "20060102_15_04_05"

type Uploader interface {
	// ArchiveAndUpload zips batchDir, uploads it under key and returns the object URL.
	ArchiveAndUpload(ctx context.Context, batchDir, key string) (string, error)
}

// DefaultKey names an upload after its batch directory and the time of upload,
// e.g. general_number-e2e-1000-rows-20240301_09_00_00.zip.
func DefaultKey(batchDir string, now time.Time) string {
	return fmt.Sprintf("%s-%s.zip", filepath.Base(batchDir), now.Format(keyTimestampLayout))
}

// ObjectURL is the virtual-hosted-style URL of key in bucket.
func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// Zip writes the contents of sourceDir to destination, replacing any existing file.
func Zip(sourceDir, destination string) error {
	z := archiver.NewZip()
	z.OverwriteExisting = true
	z.MkdirAll = true
	return z.Archive([]string{sourceDir}, destination)
}

type S3Uploader struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	region   string
	tempDir  string
}

func NewS3Uploader(sess *session.Session, bucket, region, tempDir string) *S3Uploader {
	return NewS3UploaderWithAPI(s3manager.NewUploader(sess), bucket, region, tempDir)
}

func NewS3UploaderWithAPI(uploader s3manageriface.UploaderAPI, bucket, region, tempDir string) *S3Uploader {
	return &S3Uploader{uploader: uploader, bucket: bucket, region: region, tempDir: tempDir}
}

func (u *S3Uploader) ArchiveAndUpload(ctx context.Context, batchDir, key string) (string, error) {
	fail := func(err error) (string, error) {
		return "", errors.WithStack(&couponerrors.ErrUploadFailure{Path: batchDir, Key: key, Err: err})
	}

	if info, err := os.Stat(batchDir); err != nil {
		return fail(err)
	} else if !info.IsDir() {
		return fail(errors.Errorf("%s is not a directory", batchDir))
	}

	zipPath := filepath.Join(u.tempDir, filepath.Base(batchDir)+".zip")
	if err := Zip(batchDir, zipPath); err != nil {
		return fail(err)
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			log.Warnf("could not remove %s: %v", zipPath, err)
		}
	}()

	f, err := os.Open(zipPath)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	start := time.Now()
	_, err = u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fail(err)
	}

	url := ObjectURL(u.bucket, u.region, key)
	log.WithFields(log.Fields{"bucket": u.bucket, "key": key, "elapsed": time.Since(start)}).Infof("uploaded %s", url)
	return url, nil
}
