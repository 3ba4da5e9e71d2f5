package s3storage

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/storage"
	"github.com/pkg/errors"
)

type Config struct {
	AccessKey        string
	AccessSecret     string
	AccessToken      string
	Region           string
	Endpoint         string
	PublicHost       string
	S3ForcePathStyle bool
	EnableSSL        bool
}

// RemoteStorage mirrors the slot into an S3 compatible static host:
// the owner segment of the resource path is the bucket, the rest is the key.
// S3 has no native compare-and-swap on writes, so the version check is
// performed with a HEAD right before the upload.
type RemoteStorage struct {
	cfg      Config
	s3Config *aws.Config
}

func New(cfg Config) *RemoteStorage {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.AccessSecret, cfg.AccessToken),
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		DisableSSL:       aws.Bool(!cfg.EnableSSL),
		S3ForcePathStyle: aws.Bool(cfg.S3ForcePathStyle),
	}

	return &RemoteStorage{
		cfg:      cfg,
		s3Config: s3Config,
	}
}

// NewOpener ignores the operator token, S3 credentials come from Config.
func NewOpener(cfg Config) storage.OpenerFunc {
	rs := New(cfg)
	return func(string) (storage.Storage, error) {
		return rs, nil
	}
}

func (rs *RemoteStorage) Stat(ctx context.Context, slot media.Slot) (*media.RemoteImageVersion, error) {
	sess, err := rs.getSession()
	if err != nil {
		return nil, err
	}

	out, err := s3.New(sess).HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(slot.Owner()),
		Key:    aws.String(objectKey(slot)),
	})

	if err != nil {
		return nil, mapError(err, "could not stat %s", slot.String())
	}

	return &media.RemoteImageVersion{
		Token:     normalizeETag(aws.StringValue(out.ETag)),
		Size:      aws.Int64Value(out.ContentLength),
		ReadURL:   rs.publicURL(slot),
		Path:      slot.String(),
		FetchedAt: time.Now(),
	}, nil
}

func (rs *RemoteStorage) Put(
	ctx context.Context,
	slot media.Slot,
	content []byte,
	comment, token string,
) (*storage.Item, error) {
	current, err := rs.Stat(ctx, slot)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if current != nil && current.Token != token {
		return nil, errors.Wrapf(storage.ErrConflict, "%s is at version %s, expected %q", slot.String(), current.Token, token)
	}

	if current == nil && token != "" {
		return nil, errors.Wrapf(storage.ErrConflict, "%s no longer exists, expected version %s", slot.String(), token)
	}

	sess, err := rs.getSession()
	if err != nil {
		return nil, err
	}

	if err := rs.ensureBucket(ctx, sess, slot.Owner()); err != nil {
		return nil, err
	}

	uploader := s3manager.NewUploader(sess)
	uploader.Concurrency = 1

	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Body:        bytes.NewReader(content),
		Bucket:      aws.String(slot.Owner()),
		Key:         aws.String(objectKey(slot)),
		ContentType: aws.String(media.MimeJPEG),
		Metadata:    map[string]*string{"Comment": aws.String(comment)},
	})

	if err != nil {
		return nil, mapError(err, "could not upload file %s", slot.String())
	}

	written, err := rs.Stat(ctx, slot)
	if err != nil {
		return nil, err
	}

	return &storage.Item{
		Path:  slot.String(),
		URL:   written.ReadURL,
		Token: written.Token,
		Size:  written.Size,
	}, nil
}

func (rs *RemoteStorage) ensureBucket(ctx context.Context, sess *session.Session, bucket string) error {
	_, err := s3.New(sess).CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}

	if aErr, ok := err.(awserr.Error); ok {
		if aErr.Code() == s3.ErrCodeBucketAlreadyExists || aErr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou {
			return nil
		}
	}

	return mapError(err, "could not create namespace %s", bucket)
}

func (rs *RemoteStorage) getSession() (*session.Session, error) {
	newSession, err := session.NewSession(rs.s3Config)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrStorageFailed, "s3 session could not be created: %v", err)
	}

	return newSession, nil
}

func (rs *RemoteStorage) publicURL(slot media.Slot) string {
	host := rs.cfg.PublicHost
	if host == "" {
		host = rs.cfg.Endpoint
	}

	// objects are not versioned by ref
	slot.Ref = ""

	return slot.PublicURL(host)
}

func objectKey(slot media.Slot) string {
	return slot.Repo() + "/" + slot.Filename
}

func normalizeETag(etag string) string {
	return strings.Trim(etag, `"`)
}

func mapError(err error, format string, args ...interface{}) error {
	message := err.Error()
	target := storage.ErrStorageFailed

	if reqErr, ok := err.(awserr.RequestFailure); ok {
		message = reqErr.Code() + ": " + reqErr.Message()

		switch reqErr.StatusCode() {
		case http.StatusNotFound:
			target = storage.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			target = storage.ErrUnauthorized
		case http.StatusPreconditionFailed, http.StatusConflict:
			target = storage.ErrConflict
		}
	}

	return errors.Wrapf(target, format+": %s", append(args, message)...)
}
