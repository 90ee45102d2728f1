package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "teachcal/internal/log"
	"teachcal/internal/model"
)

// Distinct failure kinds of a schedule load. Every error returned by
// Fetcher.Fetch matches exactly one of them with errors.Is.
var (
	ErrRequest     = errors.New("schedule fetch: invalid request")
	ErrNetwork     = errors.New("schedule fetch: network error")
	ErrStatus      = errors.New("schedule fetch: bad status")
	ErrContentType = errors.New("schedule fetch: response is not JSON")
	ErrDecode      = errors.New("schedule fetch: invalid JSON")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("schedule fetch: HTTP %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Source identifies one schedule endpoint.
type Source struct {
	// ID is used in logs and as cache key namespace.
	ID string
	// URL is the schedule endpoint.
	URL string
	// ProfessorID, when set, is sent as the professor_id query parameter.
	ProfessorID string
}

// cacheEntry holds HTTP cache metadata for a single schedule URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher performs one-shot schedule requests. When cacheDir is set, a
// successful body is kept on disk and revalidated with ETag /
// Last-Modified; a failed request never falls back to it.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher. An empty cacheDir disables conditional
// requests; a nil client gets a 15s timeout default.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
		}
	}
	return &Fetcher{
		client:   client,
		cacheDir: cacheDir,
	}
}

// Fetch performs a single GET of src and decodes the record list.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]model.LessonRecord, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("%w: source URL is empty", ErrRequest)
	}

	target, err := requestURL(src)
	if err != nil {
		return nil, err
	}

	var (
		cachePath  string
		meta       cacheEntry
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(target)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			// Fetch uncached rather than fail the load.
			appLog.Error("schedule cache unavailable", err, "id", src.ID)
			cachePath = ""
		} else {
			meta, _ = f.loadCacheMeta(cachePath)
			cachedBody, _ = f.loadCacheBody(cachePath)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	// Conditional headers only make sense when a body is on disk.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("schedule fetch start", "id", src.ID, "url", RedactURL(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusNotModified && len(cachedBody) > 0 {
		appLog.Info("schedule fetch not modified; using cache", "id", src.ID)
		return decode(cachedBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, fmt.Errorf("%w: %q", ErrContentType, resp.Header.Get("Content-Type"))
	}

	records, err := decode(body)
	if err != nil {
		return nil, err
	}

	if cachePath != "" {
		newMeta := cacheEntry{
			URL:          target,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched records.
			appLog.Error("schedule cache save failed", err, "id", src.ID)
		}
	}

	appLog.Info("schedule fetch success", "id", src.ID, "status", resp.StatusCode, "records", len(records))
	return records, nil
}

func decode(body []byte) ([]model.LessonRecord, error) {
	var records []model.LessonRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return records, nil
}

func requestURL(src Source) (string, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return "", fmt.Errorf("%w: source URL: %w", ErrRequest, err)
	}
	if src.ProfessorID != "" {
		q := u.Query()
		q.Set("professor_id", src.ProfessorID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL keeps only scheme and host of u for logging.
func RedactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "schedule://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
