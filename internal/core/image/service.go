// Package image 餐點照片的解碼、大小檢查與 JPEG 正規化
package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/gif" // 支援 GIF
	_ "image/png" // 支援 PNG

	"meal-analyzer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// Image 已解碼並轉為 JPEG 的餐點照片
type Image struct {
	Data   []byte // JPEG
	Width  int
	Height int
	Format string // 原始格式
	Hash   string // JPEG 資料的 SHA-256
}

// Base64 JPEG 資料的 base64 字串
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL data:image/jpeg;base64,... 形式
func (i *Image) DataURL() string {
	return "data:image/jpeg;base64," + i.Base64()
}

// Area 像素面積
func (i *Image) Area() float64 {
	return float64(i.Width) * float64(i.Height)
}

// MaxPixels 解碼前允許的最大像素數
const MaxPixels = 25_000_000

// Service 圖片處理服務
type Service struct {
	maxSizeBytes int64
	maxPixels    int
	client       *resty.Client
}

// NewService 創建新的圖片處理服務
func NewService(maxSizeBytes int64) *Service {
	return &Service{
		maxSizeBytes: maxSizeBytes,
		maxPixels:    MaxPixels,
		client:       resty.New().SetTimeout(30 * time.Second),
	}
}

// Decode 解碼原始圖片位元組（multipart 上傳）
func (s *Service) Decode(raw []byte) (*Image, error) {
	if len(raw) == 0 {
		return nil, common.ErrNoImage
	}
	if s.maxSizeBytes > 0 && int64(len(raw)) > s.maxSizeBytes {
		return nil, common.ErrInvalidImageSize.WithErr(
			fmt.Errorf("image size exceeds maximum limit of %d bytes", s.maxSizeBytes))
	}

	// 先讀標頭檢查尺寸，避免小檔案宣告超大尺寸
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, common.ErrInvalidImageFormat.WithErr(fmt.Errorf("failed to decode image header: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > s.maxPixels/cfg.Height {
		return nil, common.ErrInvalidImageSize.WithErr(
			fmt.Errorf("image dimensions %dx%d exceed %d pixels", cfg.Width, cfg.Height, s.maxPixels))
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, common.ErrInvalidImageFormat.WithErr(fmt.Errorf("failed to decode image: %w", err))
	}
	if !isSupportedFormat(format) {
		return nil, common.ErrInvalidImageFormat.WithErr(fmt.Errorf("unsupported image format: %s", format))
	}

	// 將圖片轉換為 JPEG 格式
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, common.ErrInvalidImageFormat.WithErr(fmt.Errorf("failed to encode image as JPEG: %w", err))
	}

	data := buf.Bytes()
	sum := sha256.Sum256(data)
	bounds := img.Bounds()
	return &Image{
		Data:   data,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
		Hash:   hex.EncodeToString(sum[:]),
	}, nil
}

// DecodeString 解碼 data URL、純 base64 或 http(s) 圖片網址
func (s *Service) DecodeString(ctx context.Context, imageData string) (*Image, error) {
	imageData = strings.TrimSpace(imageData)
	if imageData == "" {
		return nil, common.ErrNoImage
	}

	// 檢查是否為 URL
	if strings.HasPrefix(imageData, "http://") || strings.HasPrefix(imageData, "https://") {
		raw, err := s.download(ctx, imageData)
		if err != nil {
			return nil, err
		}
		return s.Decode(raw)
	}

	payload := imageData
	if strings.HasPrefix(imageData, "data:image/") {
		parts := strings.SplitN(imageData, ",", 2)
		if len(parts) != 2 {
			return nil, common.ErrInvalidImageFormat.WithErr(fmt.Errorf("invalid base64 data format"))
		}
		payload = parts[1]
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, common.ErrInvalidImageFormat.WithErr(fmt.Errorf("failed to decode base64 data: %w", err))
	}
	return s.Decode(decoded)
}

// download 下載圖片，超過大小上限即中止
func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, common.ErrInvalidRequest.WithErr(fmt.Errorf("failed to download image: %w", err))
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, common.ErrInvalidRequest.WithErr(
			fmt.Errorf("failed to download image: status code %d", resp.StatusCode()))
	}
	if s.maxSizeBytes > 0 && resp.RawResponse.ContentLength > s.maxSizeBytes {
		return nil, common.ErrInvalidImageSize.WithErr(
			fmt.Errorf("image size exceeds maximum limit of %d bytes", s.maxSizeBytes))
	}

	var r io.Reader = body
	if s.maxSizeBytes > 0 {
		r = io.LimitReader(body, s.maxSizeBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, common.ErrInvalidRequest.WithErr(fmt.Errorf("failed to read image: %w", err))
	}
	if s.maxSizeBytes > 0 && int64(len(raw)) > s.maxSizeBytes {
		return nil, common.ErrInvalidImageSize.WithErr(
			fmt.Errorf("image size exceeds maximum limit of %d bytes", s.maxSizeBytes))
	}
	return raw, nil
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	supportedFormats := map[string]bool{
		"jpeg": true,
		"jpg":  true,
		"png":  true,
		"gif":  true,
		"webp": true,
	}
	return supportedFormats[format]
}
