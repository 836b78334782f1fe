package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tiledash/internal/thumb"
	"github.com/starford/tiledash/internal/tilestore"
)

const maxPhotoSize = 10 << 20 // 10 MB

var allowedMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

type attachResult struct {
	ID       string `json:"id"`
	TileID   string `json:"tileId"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url"`
}

func (s *Server) attachPhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tileID, err := req.RequireString("tileId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data     []byte
		mime     string
		filename string
	)
	if strings.HasPrefix(rawURL, "data:") {
		d, perr := thumb.ParseDataURL(rawURL)
		if perr != nil {
			return mcp.NewToolResultError(perr.Error()), nil
		}
		data, mime = d.Data, d.MimeType
	} else {
		data, mime, err = fetchHTTP(ctx, rawURL)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filename = filenameFromURL(rawURL)
	}

	if len(data) > maxPhotoSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxPhotoSize)), nil
	}
	if err := validateMagicBytes(data, mime); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.svc.AddPhoto(ctx, tilestore.PhotoInput{
		TileID:     tileID,
		Base64Data: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
		Caption:    req.GetString("caption", ""),
		Filename:   filename,
		MimeType:   mime,
	})
	if err != nil {
		return errorResult(err), nil
	}

	out, _ := json.Marshal(attachResult{
		ID:       p.ID,
		TileID:   p.TileID,
		Filename: filename,
		URL:      "/api/photos/" + p.ID + "/raw",
	})
	return mcp.NewToolResultText(string(out)), nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxPhotoSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxPhotoSize)
	}

	mime := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !allowedMIME[mime] {
		mime = strings.Split(http.DetectContentType(data), ";")[0]
	}
	return data, mime, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL returns the last path element when it looks like a file.
func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" || !strings.Contains(base, ".") {
		return ""
	}
	return base
}

// validateMagicBytes verifies the content is an image of the declared type.
func validateMagicBytes(data []byte, mime string) error {
	if !allowedMIME[mime] {
		return fmt.Errorf("unsupported image type: %q (allowed: png, jpeg, gif, webp)", mime)
	}
	detected := strings.Split(http.DetectContentType(data), ";")[0]
	if detected != mime {
		return fmt.Errorf("content does not match type %s (detected: %s)", mime, detected)
	}
	return nil
}
