package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/LavishGent/holdfast/internal/types"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errLevelDown = errors.New("level down")

// mapLevel is a remote-style level that ignores TTLs and can be switched
// to fail every call.
type mapLevel struct {
	name    string
	mu      sync.Mutex
	data    map[string][]byte
	failing atomic.Bool
	gets    atomic.Int64
}

func newMapLevel(name string) *mapLevel {
	return &mapLevel{name: name, data: make(map[string][]byte)}
}

func (l *mapLevel) Name() string { return l.name }

func (l *mapLevel) Get(_ context.Context, key string) ([]byte, error) {
	l.gets.Add(1)
	if l.failing.Load() {
		return nil, types.NewCacheBackendError("get", key, l.name, errLevelDown)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.data[key]
	if !ok {
		return nil, types.ErrCacheMiss
	}
	return v, nil
}

func (l *mapLevel) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if l.failing.Load() {
		return types.NewCacheBackendError("set", key, l.name, errLevelDown)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[key] = append([]byte(nil), value...)
	return nil
}

func (l *mapLevel) Delete(_ context.Context, key string) (bool, error) {
	if l.failing.Load() {
		return false, types.NewCacheBackendError("delete", key, l.name, errLevelDown)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.data[key]
	delete(l.data, key)
	return ok, nil
}

func (l *mapLevel) has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.data[key]
	return ok
}

// fakeS3 keeps objects in memory and answers like S3 does for missing keys.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	pageSize int
	listErr  error
}

type fakeObject struct {
	body     []byte
	metadata map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject), pageSize: 1000}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.body)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{body: body, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String("missing")}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		start = sort.SearchStrings(keys, token)
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func (f *fakeS3) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}
