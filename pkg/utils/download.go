package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aiml096/farmer-bot/pkg/logger"
)

// DownloadOptions holds optional parameters for downloading files.
// Timeout bounds the whole download, also when HTTPClient is supplied.
type DownloadOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	HTTPClient   *http.Client
	LoggerPrefix string
}

const defaultMaxDownload = 20 << 20 // Telegram bots cannot fetch files above 20MB anyway.

// DownloadBytes fetches url into memory. Responses larger than MaxBytes are
// rejected rather than truncated.
func DownloadBytes(ctx context.Context, url string, opts DownloadOptions) ([]byte, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxDownload
	}
	if opts.LoggerPrefix == "" {
		opts.LoggerPrefix = "utils"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, NewStatusError("download", resp, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", opts.MaxBytes)
	}

	logger.DebugCF(opts.LoggerPrefix, "File downloaded", map[string]any{
		"size_bytes": len(data),
	})
	return data, nil
}
