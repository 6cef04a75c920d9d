package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

const folderMimeType = "application/vnd.google-apps.folder"

// ErrNoToken is returned when the OAuth token file has not been created yet.
var ErrNoToken = errors.New("google drive token missing, run `transcribe drive-auth` first")

// DriveConfig locates the OAuth client credentials and the cached token.
type DriveConfig struct {
	CredentialsFile string
	TokenFile       string
	FolderName      string
}

// DriveClient uploads transcripts to, and downloads recordings from, Google
// Drive.
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
	now        func() time.Time
	log        zerolog.Logger
}

// OAuthConfig reads the OAuth client from the credentials file.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, drive.DriveFileScope, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return config, nil
}

// NewDriveClient creates a client from a credentials file and a token saved
// by AuthorizeDrive.
func NewDriveClient(ctx context.Context, cfg DriveConfig, log zerolog.Logger) (*DriveClient, error) {
	config, err := OAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read token: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return NewDriveClientFromService(ctx, srv, cfg.FolderName, log)
}

// NewDriveClientFromService wraps an existing service and makes sure the root
// folder exists.
func NewDriveClientFromService(ctx context.Context, srv *drive.Service, folderName string, log zerolog.Logger) (*DriveClient, error) {
	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
		now:        time.Now,
		log:        log.With().Str("component", "gdrive").Logger(),
	}
	id, err := dc.findOrCreateFolder(ctx, folderName, "")
	if err != nil {
		return nil, fmt.Errorf("unable to prepare folder %q: %w", folderName, err)
	}
	dc.folderID = id
	return dc, nil
}

// AuthorizeDrive runs the interactive OAuth flow: it prints the consent URL to
// out, reads the code from in and saves the token to tokenFile.
func AuthorizeDrive(ctx context.Context, config *oauth2.Config, tokenFile string, in io.Reader, out io.Writer) error {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser:\n%v\n", authURL)
	fmt.Fprint(out, "Enter authorization code: ")

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return saveToken(tokenFile, tok)
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Upload stores the transcript text and its metadata under
// <folder>/YYYY/MM/DD and returns a link to the text file.
func (dc *DriveClient) Upload(ctx context.Context, t *types.Transcript) (string, error) {
	now := dc.now()
	folderID, err := dc.ensureDateFolder(ctx, now)
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(t.Name))

	txt, err := dc.service.Files.Create(&drive.File{
		Name:     base + "_transcript.txt",
		Parents:  []string{folderID},
		MimeType: "text/plain",
	}).Media(strings.NewReader(t.Text)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript: %w", err)
	}

	metaJSON, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = dc.service.Files.Create(&drive.File{
		Name:     base + "_meta.json",
		Parents:  []string{folderID},
		MimeType: "application/json",
	}).Media(bytes.NewReader(metaJSON)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}

	url := fmt.Sprintf("https://drive.google.com/file/d/%s/view", txt.Id)
	dc.log.Debug().Str("job_id", t.JobID).Str("url", url).Msg("transcript uploaded")
	return url, nil
}

// Download writes the content of fileID to w and returns the file's name.
func (dc *DriveClient) Download(ctx context.Context, fileID string, w io.Writer) (string, error) {
	meta, err := dc.service.Files.Get(fileID).Fields("name", "size").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get file metadata: %w", err)
	}

	resp, err := dc.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write downloaded file: %w", err)
	}
	return meta.Name, nil
}

// ensureDateFolder creates nested year/month/day folders
func (dc *DriveClient) ensureDateFolder(ctx context.Context, t time.Time) (string, error) {
	parent := dc.folderID
	for _, name := range []string{
		fmt.Sprintf("%d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	} {
		id, err := dc.findOrCreateFolder(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

// findOrCreateFolder finds or creates a folder with the given parent. An
// empty parent means anywhere in the drive.
func (dc *DriveClient) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for folder: %w", err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder: %w", err)
	}
	return file.Id, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
