package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookKey(t *testing.T) {
	at := time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "chapa/2026/01/02/evt_1.json", WebhookKey("CHAPA", "evt_1", at))
	assert.Equal(t, "stripe/2026/01/02/a_b_c.json", WebhookKey("stripe", "a/b:c", at))
	assert.Equal(t, "stripe/2026/01/02/_etc_passwd.json", WebhookKey("stripe", "../etc/passwd", at))
}

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	res, err := l.Put(context.Background(), bytes.NewBufferString(`{"ok":true}`), PutInput{Key: "chapa/2026/01/02/e.json"})
	require.NoError(t, err)
	assert.Equal(t, "chapa/2026/01/02/e.json", res.Key)

	b, err := os.ReadFile(filepath.Join(dir, "chapa", "2026", "01", "02", "e.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(b))
}

func TestLocalPutStaysInsideBaseDir(t *testing.T) {
	dir := t.TempDir()
	res, err := NewLocal(dir).Put(context.Background(), bytes.NewBufferString("x"), PutInput{Key: "../../escape.json"})
	require.NoError(t, err)
	assert.Equal(t, "escape.json", res.Key)
	_, err = os.Stat(filepath.Join(dir, "escape.json"))
	assert.NoError(t, err)
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3PutPrefixesKey(t *testing.T) {
	fake := &fakeS3{}
	s := &S3{Client: fake, Bucket: "archive", Prefix: "/webhooks/"}

	res, err := s.Put(context.Background(), bytes.NewBufferString("{}"), PutInput{Key: "stripe/x.json"})
	require.NoError(t, err)
	assert.Equal(t, "webhooks/stripe/x.json", *fake.in.Key)
	assert.Equal(t, "archive", *fake.in.Bucket)
	assert.Equal(t, "application/json", *fake.in.ContentType)
	assert.Equal(t, "s3://archive/webhooks/stripe/x.json", res.Location)
	assert.Equal(t, "{}", string(fake.body))
}

func TestFromOptions(t *testing.T) {
	res, err := FromOptions(context.Background(), Options{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, res.Storage)

	res, err = FromOptions(context.Background(), Options{Driver: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, res.Storage)

	_, err = FromOptions(context.Background(), Options{Driver: "s3"})
	assert.Error(t, err)

	_, err = FromOptions(context.Background(), Options{Driver: "ftp"})
	assert.Error(t, err)
}
