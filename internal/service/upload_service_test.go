package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metspa/woo-ai-customer-service/internal/config"
)

// pngHeader 是一张最小的合法 PNG 文件头，足以通过内容嗅探。
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func multipartImage(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["image"][0]
}

func TestUploadRejectsOversize(t *testing.T) {
	header := multipartImage(t, "big.png", append(pngHeader, make([]byte, MaxUploadSize)...))
	svc := NewUploadService(config.MinIOConfig{BucketName: "chat-uploads"})

	_, err := svc.UploadImage(context.Background(), "s1", header)
	var rejected *UploadRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Contains(t, rejected.Message, "5MB")
}

func TestUploadRejectsNonImage(t *testing.T) {
	header := multipartImage(t, "notes.txt", []byte("plain text, definitely not an image"))
	svc := NewUploadService(config.MinIOConfig{BucketName: "chat-uploads"})

	_, err := svc.UploadImage(context.Background(), "s1", header)
	var rejected *UploadRejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":          "photo.jpg",
		"../../etc/passwd":   "passwd",
		"my photo (1).png":   "my_photo__1_.png",
		"..":                 "image",
		"спам.png":           "png",
		"white space\t.webp": "white_space_.webp",
	}
	for in, want := range cases {
		require.Equal(t, want, sanitizeFileName(in), "input %q", in)
	}
}
