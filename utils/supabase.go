package utils

import (
	"context"
	"io"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseUploader đẩy file báo cáo lên một bucket Supabase Storage.
type SupabaseUploader struct {
	client *storage.Client
	bucket string
}

// NewSupabaseUploader trả về nil khi chưa cấu hình URL/KEY, để báo cáo chỉ lưu local.
func NewSupabaseUploader(url, key, bucket string) *SupabaseUploader {
	if url == "" || key == "" {
		return nil
	}
	return &SupabaseUploader{
		client: storage.NewClient(url+"/storage/v1", key, nil),
		bucket: bucket,
	}
}

func (u *SupabaseUploader) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	upsert := true
	options := storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}
	if _, err := u.client.UploadFile(u.bucket, objectPath, r, options); err != nil {
		return "", err
	}

	publicURL := u.client.GetPublicUrl(u.bucket, objectPath)
	return publicURL.SignedURL, nil
}
