package avatars

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/chatterbox/internal/server/config"
)

func newPresigner() *S3Presigner {
	return NewS3Presigner(&sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000/",
		S3Bucket:       "avatars",
	})
}

func stubAWS(t *testing.T) {
	t.Helper()

	origLoad, origNewS3, origNewPre, origPut := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient, presignPutObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000/" {
			t.Fatalf("BaseEndpoint not applied")
		}
		if !opts.UsePathStyle {
			t.Fatalf("path style addressing expected")
		}
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestPresignUpload_Success(t *testing.T) {
	stubAWS(t)

	var gotIn *s3.PutObjectInput
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotIn = in
		return &v4.PresignedHTTPRequest{URL: "http://signed"}, nil
	}

	up, err := newPresigner().PresignUpload(context.Background(), "u-1", "image/png")
	if err != nil {
		t.Fatalf("PresignUpload error: %v", err)
	}

	if up.UploadURL != "http://signed" {
		t.Fatalf("upload url = %q", up.UploadURL)
	}
	if !strings.HasPrefix(up.Key, "avatars/u-1/") || !strings.HasSuffix(up.Key, ".png") {
		t.Fatalf("unexpected key %q", up.Key)
	}
	if up.PublicURL != "http://127.0.0.1:9000/avatars/"+up.Key {
		t.Fatalf("public url = %q", up.PublicURL)
	}
	if *gotIn.Bucket != "avatars" || *gotIn.ContentType != "image/png" {
		t.Fatalf("unexpected input: %+v", gotIn)
	}
}

func TestPresignUpload_RejectsContentType(t *testing.T) {
	if _, err := newPresigner().PresignUpload(context.Background(), "u-1", "text/html"); err == nil {
		t.Fatal("expected error for text/html")
	}
}

func TestPresignUpload_Errors(t *testing.T) {
	stubAWS(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-put-fail")
	}
	if _, err := newPresigner().PresignUpload(context.Background(), "u-1", "image/jpeg"); err == nil || err.Error() != "presign-put-fail" {
		t.Fatalf("want presign-put-fail, got %v", err)
	}

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	if _, err := newPresigner().PresignUpload(context.Background(), "u-1", "image/jpeg"); err == nil || err.Error() != "load-fail" {
		t.Fatalf("want load-fail, got %v", err)
	}
}
