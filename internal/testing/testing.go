// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockContentService is a test double for [services.ContentService].
//
// Unset expectations for list methods return empty results so tests only
// stub what they care about.
type MockContentService struct {
	mock.Mock
}

func (m *MockContentService) has(method string) bool {
	for _, c := range m.ExpectedCalls {
		if c.Method == method {
			return true
		}
	}
	return false
}

func (m *MockContentService) Posts(ctx context.Context) ([]models.Post, error) {
	if !m.has("Posts") {
		return []models.Post{}, nil
	}
	args := m.Called(ctx)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockContentService) Post(ctx context.Context, slug string) (*models.Post, error) {
	args := m.Called(ctx, slug)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockContentService) Resources(ctx context.Context) ([]models.Resource, error) {
	if !m.has("Resources") {
		return []models.Resource{}, nil
	}
	args := m.Called(ctx)
	return args.Get(0).([]models.Resource), args.Error(1)
}

func (m *MockContentService) Resource(ctx context.Context, slug string) (*models.Resource, error) {
	args := m.Called(ctx, slug)
	resource, _ := args.Get(0).(*models.Resource)
	return resource, args.Error(1)
}

func (m *MockContentService) Trainings(ctx context.Context) ([]models.Training, error) {
	if !m.has("Trainings") {
		return []models.Training{}, nil
	}
	args := m.Called(ctx)
	return args.Get(0).([]models.Training), args.Error(1)
}

func (m *MockContentService) Training(ctx context.Context, slug string) (*models.Training, error) {
	args := m.Called(ctx, slug)
	training, _ := args.Get(0).(*models.Training)
	return training, args.Error(1)
}

func (m *MockContentService) Tags(ctx context.Context) ([]models.Tag, error) {
	if !m.has("Tags") {
		return []models.Tag{}, nil
	}
	args := m.Called(ctx)
	return args.Get(0).([]models.Tag), args.Error(1)
}

func (m *MockContentService) Categories(ctx context.Context) ([]models.Category, error) {
	if !m.has("Categories") {
		return []models.Category{}, nil
	}
	args := m.Called(ctx)
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockContentService) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
