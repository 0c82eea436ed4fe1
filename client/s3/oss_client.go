package s3

import (
	"io"
	"io/ioutil"
	"os"

	"contraflow/session"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// ContractBucket holds contract source documents, signature artifacts and
// sealed documents.
var (
	ContractBucket *oss.Bucket
	GetObjectFunc  func(string, *session.Session, ...oss.Option) (io.ReadCloser, error)
	PutObjectFunc  func(string, io.Reader, *session.Session, ...oss.Option) error
)

func Bootstrap() {
	var err error
	ContractBucket, err = BuildBucketFromEnv()
	if err != nil {
		panic(err)
	}

	GetObjectFunc = GetObject
	PutObjectFunc = PutObject
}

func BuildBucketFromEnv() (*oss.Bucket, error) {
	endpoint := os.ExpandEnv(os.Getenv("OSS_ENDPOINT"))
	if endpoint == "" {
		endpoint = "dummy"
	}
	accessKey := os.Getenv("OSS_ACCESS_KEY")
	secretKey := os.Getenv("OSS_SECRET_KEY")
	bucket := os.Getenv("OSS_BUCKET")
	if bucket == "" {
		bucket = "contraflow"
	}
	return BuildBucket(endpoint, accessKey, secretKey, bucket)
}

func BuildBucket(endpoint, accesskey, secretKey, bucketName string) (*oss.Bucket, error) {
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := oss.New(endpoint, accesskey, secretKey, oss.HTTPClient(nil))
	if err != nil {
		return nil, err
	}

	bucket, err := cli.Bucket(bucketName)
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func GetObject(key string, s *session.Session, opts ...oss.Option) (io.ReadCloser, error) {
	var childSpan *opentracing.Span
	if s != nil && s.Context != nil {
		parentSpan := opentracing.SpanFromContext(s.Context)
		if parentSpan != nil {
			tracer := parentSpan.Tracer()
			sp := tracer.StartSpan("get-object", opentracing.ChildOf(parentSpan.Context()))
			sp.SetTag("object-key", key)
			childSpan = &sp
			defer sp.Finish()
		}
	}

	r, err := ContractBucket.GetObject(key, opts...)
	if childSpan != nil {
		ext.Error.Set(*childSpan, err != nil)
	}
	return r, err
}

func PutObject(key string, r io.Reader, s *session.Session, opts ...oss.Option) error {
	var childSpan *opentracing.Span
	if s != nil && s.Context != nil {
		parentSpan := opentracing.SpanFromContext(s.Context)
		if parentSpan != nil {
			tracer := parentSpan.Tracer()
			sp := tracer.StartSpan("put-object", opentracing.ChildOf(parentSpan.Context()))
			sp.SetTag("object-key", key)
			childSpan = &sp
			defer sp.Finish()
		}
	}

	err := ContractBucket.PutObject(key, r, opts...)
	if childSpan != nil {
		ext.Error.Set(*childSpan, err != nil)
	}
	return err
}

// GetObjectBytes loads a whole object into memory, for hashing small documents.
func GetObjectBytes(key string, s *session.Session) ([]byte, error) {
	r, err := GetObjectFunc(key, s)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}
