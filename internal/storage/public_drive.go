package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// PublicDrive downloads files shared as "anyone with the link" without
// credentials.
type PublicDrive struct {
	Client  *http.Client
	BaseURL string // https://drive.google.com if empty
}

// Download fetches fileID through the uc?export=download endpoint. The file
// name is not known without the API, so the returned name is empty.
func (p *PublicDrive) Download(ctx context.Context, fileID string, w io.Writer) (string, error) {
	base := p.BaseURL
	if base == "" {
		base = "https://drive.google.com"
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	u := fmt.Sprintf("%s/uc?export=download&id=%s", base, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download from google drive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file not accessible (status %d), it may be private or missing", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write downloaded file: %w", err)
	}
	return "", nil
}
