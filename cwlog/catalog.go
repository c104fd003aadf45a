package cwlog

import (
	"context"
	"io"

	"github.com/advdv/reqlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// GetObjectAPI is the part of the S3 client used by [S3Catalog].
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Catalog reads the field machine names from a JSON document in S3. The document is either an array of names
// or an array of objects with a "name" member, as exported from the application's field storage.
type S3Catalog struct {
	client GetObjectAPI
	bucket string
	key    string
}

// NewS3Catalog inits a catalog reading s3://bucket/key.
func NewS3Catalog(client GetObjectAPI, bucket, key string) *S3Catalog {
	return &S3Catalog{client: client, bucket: bucket, key: key}
}

// FieldNames implements [reqlog.FieldCatalog]. Duplicates are removed, the first occurrence keeps its place.
func (c *S3Catalog) FieldNames(ctx context.Context) ([]string, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get field catalog s3://%s/%s", c.bucket, c.key)
	}
	defer out.Body.Close()

	doc, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read field catalog")
	}

	return parseCatalog(doc)
}

func parseCatalog(doc []byte) ([]string, error) {
	if !gjson.ValidBytes(doc) {
		return nil, errors.New("field catalog is not valid JSON")
	}

	root := gjson.ParseBytes(doc)
	if !root.IsArray() {
		return nil, errors.New("field catalog must be a JSON array")
	}

	var names []string
	root.ForEach(func(_, v gjson.Result) bool {
		name := v.String()
		if v.IsObject() {
			name = v.Get("name").String()
		}
		if name != "" {
			names = append(names, name)
		}
		return true
	})

	return lo.Uniq(names), nil
}

var _ reqlog.FieldCatalog = &S3Catalog{}
