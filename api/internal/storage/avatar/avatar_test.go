package avatar

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type presignStub struct {
	in  *s3.PutObjectInput
	err error
}

func (p *presignStub) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.in = in
	if p.err != nil {
		return nil, p.err
	}
	return &v4.PresignedHTTPRequest{Method: http.MethodPut, URL: "https://signed.example/" + aws.ToString(in.Key)}, nil
}

func TestPresignUpload(t *testing.T) {
	stub := &presignStub{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := &Uploads{presign: stub, cfg: Config{Bucket: "avatars", Region: "eu-west-1", TTL: 15 * time.Minute}, now: func() time.Time { return now }}

	up, err := u.PresignUpload(context.Background(), "u1", "image/PNG")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(up.Key, "avatars/u1/") || !strings.HasSuffix(up.Key, ".png") {
		t.Fatalf("unexpected key %q", up.Key)
	}
	if aws.ToString(stub.in.ContentType) != "image/png" || aws.ToString(stub.in.Bucket) != "avatars" {
		t.Fatalf("unexpected input %+v", stub.in)
	}
	if up.ImageURL != "https://avatars.s3.eu-west-1.amazonaws.com/"+up.Key {
		t.Fatalf("unexpected image url %q", up.ImageURL)
	}
	if !up.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", up.ExpiresAt)
	}
}

func TestPresignUploadRejectsNonImages(t *testing.T) {
	u := &Uploads{presign: &presignStub{}, cfg: Config{Bucket: "b"}, now: time.Now}
	if _, err := u.PresignUpload(context.Background(), "u1", "application/pdf"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestPresignUploadWrapsErrors(t *testing.T) {
	u := &Uploads{presign: &presignStub{err: errors.New("denied")}, cfg: Config{Bucket: "b"}, now: time.Now}
	if _, err := u.PresignUpload(context.Background(), "u1", "image/jpeg"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublicURLVariants(t *testing.T) {
	u := &Uploads{cfg: Config{Bucket: "b", Endpoint: "http://minio:9000/"}}
	if got := u.publicURL("k.png"); got != "http://minio:9000/b/k.png" {
		t.Fatalf("endpoint url = %q", got)
	}
	u.cfg.PublicURL = "https://cdn.example/"
	if got := u.publicURL("k.png"); got != "https://cdn.example/k.png" {
		t.Fatalf("public url = %q", got)
	}
}

func TestNewAppliesRegionCredentialsAndEndpoint(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load option: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		if lo.Credentials == nil {
			t.Fatal("expected static credentials")
		}
		return aws.Config{Region: lo.Region}, nil
	}
	var endpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		endpoint = aws.ToString(opts.BaseEndpoint)
		if !opts.UsePathStyle {
			t.Fatal("expected path style addressing for custom endpoint")
		}
		return s3.New(opts)
	}

	u, err := New(context.Background(), Config{Bucket: "b", Region: "us-east-1", Endpoint: "http://minio:9000", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if endpoint != "http://minio:9000" {
		t.Fatalf("endpoint = %q", endpoint)
	}
	if u.cfg.TTL != 15*time.Minute {
		t.Fatalf("expected default ttl, got %s", u.cfg.TTL)
	}

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
