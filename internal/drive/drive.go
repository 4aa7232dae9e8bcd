// Package drive downloads shared files from Google Drive, and files Notion
// hosts itself behind pre-signed links.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

const DefaultBaseURL = "https://drive.google.com/uc"

var (
	ErrInvalidURL      = errors.New("drive: invalid file url")
	ErrNotDownloadable = errors.New("drive: file is not downloadable")
	ErrTooLarge        = errors.New("drive: file exceeds download limit")
)

var (
	filePathID = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	bareID     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func clean(raw string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(raw), ";"))
}

func hasScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// FileID extracts the Drive file id from a share, preview or download URL.
// Input without an http(s) scheme must be a bare id.
func FileID(raw string) (string, error) {
	raw = clean(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !hasScheme(raw) {
		if !bareID.MatchString(raw) {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if id := u.Query().Get("id"); id != "" {
		return id, nil
	}
	if m := filePathID.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	return "", ErrInvalidURL
}

// File is a downloaded document.
type File struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// Client downloads files through Drive's export endpoint.
type Client struct {
	baseURL    string
	maxBytes   int64
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration, maxBytes int64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		maxBytes: maxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Download fetches the file behind rawURL. Drive answers large files with an
// HTML confirmation page first; its download link is followed once.
func (c *Client) Download(ctx context.Context, rawURL string) (*File, error) {
	id, err := FileID(rawURL)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + "?" + url.Values{"export": {"download"}, "id": {id}}.Encode()
	f, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	if isHTML(f.ContentType) {
		next, ok := confirmURL(f.Data, u)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotDownloadable, id)
		}
		if f, err = c.fetch(ctx, next); err != nil {
			return nil, err
		}
		if isHTML(f.ContentType) {
			return nil, fmt.Errorf("%w: %s", ErrNotDownloadable, id)
		}
	}

	f.ID = id
	if f.Name == "" {
		f.Name = id
	}
	return f, nil
}

// DirectURL validates a link that is fetched as-is, such as the pre-signed
// URL of a file uploaded to Notion. Only https is accepted.
func DirectURL(raw string) (string, error) {
	raw = clean(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("%w: not an https url", ErrInvalidURL)
	}
	return raw, nil
}

// Fetch downloads rawURL directly, with the same size limit as Download.
// The name comes from Content-Disposition, else the last path element.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*File, error) {
	u, err := DirectURL(rawURL)
	if err != nil {
		return nil, err
	}
	f, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = nameFromURL(u)
	}
	return f, nil
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func (c *Client) fetch(ctx context.Context, u string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("download: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	body := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, c.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download: empty body")
	}

	return &File{
		Name:        attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func isHTML(contentType string) bool {
	mt, _, _ := mime.ParseMediaType(contentType)
	return mt == "text/html"
}

func attachmentName(cd string) string {
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
