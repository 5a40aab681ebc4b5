package resume

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `{"personalInfo":{"name":"Stephen Chung","title":"Engineer"},"skills":["Go","TypeScript"]}`

type fakeObjects struct {
	data []byte
	err  error

	bucket, object string
}

func (f *fakeObjects) GetObject(ctx context.Context, bucket, objectName string) ([]byte, error) {
	f.bucket, f.object = bucket, objectName
	return f.data, f.err
}

func writeResume(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	loader := NewLoader(FileSource{Path: writeResume(t, sampleResume)})

	doc, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Stephen Chung", doc.OwnerName())
	assert.Equal(t, "Stephen", doc.FirstName())
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(FileSource{Path: filepath.Join(t.TempDir(), "missing.json")})

	doc, err := loader.Load(context.Background())
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrContextUnavailable)
}

func TestLoadMalformedFile(t *testing.T) {
	for name, content := range map[string]string{
		"truncated": `{"personalInfo":`,
		"array":     `[1,2,3]`,
		"null":      `null`,
	} {
		t.Run(name, func(t *testing.T) {
			loader := NewLoader(FileSource{Path: writeResume(t, content)})
			doc, err := loader.Load(context.Background())
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, ErrContextUnavailable)
		})
	}
}

func TestLoadFromObjectStore(t *testing.T) {
	objects := &fakeObjects{data: []byte(sampleResume)}
	loader, err := NewLoaderFromConfig(&config.ResumeConfig{Source: "minio", Bucket: "site", Object: "resume.json"}, objects)
	require.NoError(t, err)

	doc, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Stephen Chung", doc.OwnerName())
	assert.Equal(t, "site", objects.bucket)
	assert.Equal(t, "resume.json", objects.object)

	objects.err = errors.New("connection refused")
	_, err = loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrContextUnavailable)
}

func TestNewLoaderFromConfig(t *testing.T) {
	_, err := NewLoaderFromConfig(&config.ResumeConfig{Source: "minio", Bucket: "b", Object: "o"}, nil)
	assert.Error(t, err)

	_, err = NewLoaderFromConfig(&config.ResumeConfig{Source: "minio"}, &fakeObjects{})
	assert.Error(t, err)

	_, err = NewLoaderFromConfig(&config.ResumeConfig{Source: "ftp"}, nil)
	assert.Error(t, err)

	loader, err := NewLoaderFromConfig(&config.ResumeConfig{Source: "file", Path: "x.json"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "file:x.json", loader.source.Describe())
}

// 仓库自带的简历文件必须能被解析
func TestBundledResume(t *testing.T) {
	loader := NewLoader(FileSource{Path: filepath.Join("..", "..", DefaultPath)})
	doc, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Stephen Chung", doc.OwnerName())

	_, ok := doc.Section("experience")
	assert.True(t, ok)
}

func TestBuildSystemInstruction(t *testing.T) {
	doc, err := types.ParseResumeDocument([]byte(sampleResume))
	require.NoError(t, err)

	turn, err := BuildSystemInstruction(doc)
	require.NoError(t, err)
	assert.Equal(t, types.RoleSystem, turn.Role)
	assert.True(t, strings.HasPrefix(turn.Content, "You are an AI assistant with access to Stephen's resume:"))
	assert.Contains(t, turn.Content, `"name": "Stephen Chung"`, "简历应以两个空格缩进输出")
	assert.Contains(t, turn.Content, "Use proper line breaks")
	assert.Contains(t, turn.Content, "Do not include number headings")

	again, err := BuildSystemInstruction(doc)
	require.NoError(t, err)
	assert.Equal(t, turn, again)
}

func TestBuildSystemInstructionWithoutOwner(t *testing.T) {
	doc, err := types.ParseResumeDocument([]byte(`{"skills":["Go"]}`))
	require.NoError(t, err)

	turn, err := BuildSystemInstruction(doc)
	require.NoError(t, err)
	assert.Contains(t, turn.Content, "the site owner's resume")

	_, err = BuildSystemInstruction(nil)
	assert.ErrorIs(t, err, ErrContextUnavailable)
}
