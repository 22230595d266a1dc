// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package http downloads files into the cache of the work directory.
package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

var (
	// ErrOffline is returned if a file is needed that is not cached while
	// running in offline mode.
	ErrOffline = errors.New("file not in cache and offline mode is enabled")

	// ErrStatus is returned for unexpected HTTP response codes.
	ErrStatus = errors.New("unexpected HTTP status")
)

// Client downloads files and caches them in CacheDir.
type Client struct {
	// CacheDir is usually "$WORK/cache_http".
	CacheDir string
	Offline  bool
	// HTTPClient defaults to [http.DefaultClient].
	HTTPClient *http.Client
	// Headers are sent with every request.
	Headers map[string]string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	return http.DefaultClient
}

// CacheName returns the file name a URL is cached as.
func CacheName(url, prefix string) string {
	sum := blake3.Sum256([]byte(url))

	return strings.ReplaceAll(prefix, "/", "_") + "_" + hex.EncodeToString(sum[:8])
}

// CachePath returns the path a URL is cached at.
func (c *Client) CachePath(url, prefix string) string {
	return filepath.Join(c.CacheDir, CacheName(url, prefix))
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}

	return resp, nil
}

// Download downloads the URL into the cache and returns the path of the
// cached file. If cache is true, an already cached file is returned without
// downloading it again.
//
// With allow404, a 404 response is logged as warning and an empty path is
// returned.
func (c *Client) Download(
	ctx context.Context,
	url, prefix string,
	cache, allow404 bool,
) (string, error) {
	path := c.CachePath(url, prefix)

	if _, err := os.Stat(path); err == nil {
		if cache || c.Offline {
			return path, nil
		}

		err := os.Remove(path)
		if err != nil {
			return "", fmt.Errorf("remove cached file: %w", err)
		}
	}

	if c.Offline {
		return "", fmt.Errorf("%w: %s", ErrOffline, url)
	}

	err := os.MkdirAll(c.CacheDir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	slog.Info("Download " + url)

	resp, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && allow404:
		slog.Warn("File not found", slog.String("url", url))
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp(c.CacheDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("download %s: %w", url, err)
	}

	err = tmp.Close()
	if err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return "", fmt.Errorf("move download into cache: %w", err)
	}

	return path, nil
}

// Retrieve returns the content of the URL. With allow404, a 404 response is
// logged as warning and nil is returned.
func (c *Client) Retrieve(ctx context.Context, url string, allow404 bool) ([]byte, error) {
	if c.Offline {
		return nil, fmt.Errorf("%w: %s", ErrOffline, url)
	}

	slog.Debug("Retrieving " + url)

	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && allow404:
		slog.Warn("Failed to retrieve content", slog.String("url", url))
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return data, nil
}

// RetrieveJSON retrieves the URL and decodes the JSON content into v.
func (c *Client) RetrieveJSON(ctx context.Context, url string, v any) error {
	data, err := c.Retrieve(ctx, url, false)
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}

	return nil
}
