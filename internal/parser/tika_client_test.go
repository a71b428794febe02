package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTikaExtractText 测试向Tika服务器提交文档并取回纯文本
func TestTikaExtractText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("  张三的简历全文\n"))
	}))
	defer server.Close()

	client := NewTikaClient(server.URL, 5*time.Second)
	text, err := client.ExtractText(context.Background(), []byte("fake-docx-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "张三的简历全文", text)
}

// TestTikaExtractTextServerError Tika返回非200时报错
func TestTikaExtractTextServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported media type", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewTikaClient(server.URL, 5*time.Second)
	_, err := client.ExtractText(context.Background(), []byte("bad"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

// TestCompositeParserImagePassthrough 图片文件无文本，内容作为照片返回
func TestCompositeParserImagePassthrough(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(imgPath, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	parser, err := NewCompositeDocumentParser(context.Background())
	require.NoError(t, err)

	text, images, err := parser.Extract(context.Background(), imgPath)
	require.NoError(t, err)
	assert.Empty(t, text)
	require.Len(t, images, 1)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, images[0])
}

// TestCompositeParserUnsupportedExtension 未知扩展名直接拒绝
func TestCompositeParserUnsupportedExtension(t *testing.T) {
	parser, err := NewCompositeDocumentParser(context.Background())
	require.NoError(t, err)

	_, _, err = parser.Extract(context.Background(), "/tmp/resume.exe")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的文件类型")
}

// TestCompositeParserDocWithoutTika 未配置Tika时doc解析报错
func TestCompositeParserDocWithoutTika(t *testing.T) {
	parser, err := NewCompositeDocumentParser(context.Background())
	require.NoError(t, err)

	_, _, err = parser.Extract(context.Background(), "/tmp/resume.docx")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Tika")
}
