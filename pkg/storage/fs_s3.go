package storage

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/transport/http"
	"k8s.io/utils/pointer"
	servexerrors "kubegems.io/servex/pkg/errors"
)

type S3Options struct {
	URL       string `json:"url,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`
}

func NewDefaultS3Options() *S3Options {
	return &S3Options{
		Region:    "us-east-1",
		PathStyle: true,
	}
}

var _ Provider = &S3StorageProvider{}

type S3StorageProvider struct {
	Bucket string
	Client *s3.Client
	Prefix string
}

func NewS3StorageProvider(ctx context.Context, options *S3Options) (*S3StorageProvider, error) {
	loadopts := []func(*config.LoadOptions) error{config.WithRegion(options.Region)}
	if options.AccessKey != "" {
		loadopts = append(loadopts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKey, options.SecretKey, ""),
		))
	}
	if options.URL != "" {
		loadopts = append(loadopts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{URL: options.URL, HostnameImmutable: options.PathStyle}, nil
				},
			),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadopts...)
	if err != nil {
		return nil, err
	}
	s3cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = options.PathStyle
	})
	return &S3StorageProvider{
		Bucket: options.Bucket,
		Client: s3cli,
		Prefix: strings.Trim(options.Prefix, "/"),
	}, nil
}

func (m *S3StorageProvider) Put(ctx context.Context, path string, content Content) error {
	uploadobj := &s3.PutObjectInput{
		Bucket:        aws.String(m.Bucket),
		Key:           m.prefixedKey(path),
		Body:          content.Content,
		ContentLength: content.ContentLength,
	}
	if content.ContentType != "" {
		uploadobj.ContentType = aws.String(content.ContentType)
	}
	if _, err := manager.NewUploader(m.Client).Upload(ctx, uploadobj); err != nil {
		return servexerrors.NewInternalError(err)
	}
	return nil
}

func (m *S3StorageProvider) Get(ctx context.Context, path string) (Content, error) {
	getobjout, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	})
	if err != nil {
		if IsS3StorageNotFound(err) {
			return Content{}, servexerrors.NewBlobUnknownError(path)
		}
		return Content{}, err
	}
	return Content{
		Content:       getobjout.Body,
		ContentType:   pointer.StringDeref(getobjout.ContentType, ""),
		ContentLength: getobjout.ContentLength,
	}, nil
}

func (m *S3StorageProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	})
	if err != nil {
		if IsS3StorageNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *S3StorageProvider) List(ctx context.Context, path string, recursive bool) ([]ObjectMeta, error) {
	prefix := *m.prefixedKey(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	listinput := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.Bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		listinput.Delimiter = aws.String("/")
	}
	result := []ObjectMeta{}
	paginator := s3.NewListObjectsV2Paginator(m.Client, listinput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range page.CommonPrefixes {
			result = append(result, ObjectMeta{Name: strings.TrimPrefix(pointer.StringDeref(p.Prefix, ""), prefix)})
		}
		for _, obj := range page.Contents {
			meta := ObjectMeta{
				Name: strings.TrimPrefix(pointer.StringDeref(obj.Key, ""), prefix),
				Size: obj.Size,
			}
			if obj.LastModified != nil {
				meta.LastModified = *obj.LastModified
			}
			result = append(result, meta)
		}
	}
	return result, nil
}

func (m *S3StorageProvider) Remove(ctx context.Context, path string, recursive bool) error {
	if !recursive {
		_, err := m.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.Bucket),
			Key:    m.prefixedKey(path),
		})
		return err
	}
	objects, err := m.List(ctx, path, true)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}
	objectsids := make([]s3types.ObjectIdentifier, 0, len(objects))
	for _, object := range objects {
		objectsids = append(objectsids, s3types.ObjectIdentifier{Key: m.prefixedKey(path + "/" + object.Name)})
	}
	_, err = m.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(m.Bucket),
		Delete: &s3types.Delete{Objects: objectsids},
	})
	return err
}

func IsS3StorageNotFound(err error) bool {
	var apie *http.ResponseError
	if errors.As(err, &apie) {
		return apie.HTTPStatusCode() == 404
	}
	return false
}

func (m *S3StorageProvider) prefixedKey(key string) *string {
	return aws.String(strings.TrimPrefix(path.Join(m.Prefix, key), "/"))
}
