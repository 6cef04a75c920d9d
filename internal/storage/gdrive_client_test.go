package storage_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// fakeDrive is just enough of the Drive v3 REST API for the client.
type fakeDrive struct {
	mu      sync.Mutex
	nextID  int
	folders []string
	uploads map[string]string // name -> content
}

func (f *fakeDrive) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer GinkgoRecover()
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/files":
		_, _ = w.Write([]byte(`{"files":[]}`))

	case r.Method == http.MethodPost && r.URL.Path == "/files":
		var file drive.File
		Expect(json.NewDecoder(r.Body).Decode(&file)).To(Succeed())
		Expect(file.MimeType).To(Equal("application/vnd.google-apps.folder"))
		f.folders = append(f.folders, file.Name)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": f.id("folder")})

	case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		Expect(err).ToNot(HaveOccurred())
		mr := multipart.NewReader(r.Body, params["boundary"])

		part, err := mr.NextPart()
		Expect(err).ToNot(HaveOccurred())
		var file drive.File
		Expect(json.NewDecoder(part).Decode(&file)).To(Succeed())

		part, err = mr.NextPart()
		Expect(err).ToNot(HaveOccurred())
		content, err := io.ReadAll(part)
		Expect(err).ToNot(HaveOccurred())
		f.uploads[file.Name] = string(content)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": f.id("file")})

	case r.Method == http.MethodGet && r.URL.Path == "/files/rec-1" && r.URL.Query().Get("alt") == "media":
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 audio bytes"))

	case r.Method == http.MethodGet && r.URL.Path == "/files/rec-1":
		_, _ = w.Write([]byte(`{"name":"standup.mp3","size":"15"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
	}
}

var _ = Describe("DriveClient", func() {
	var (
		fake   *fakeDrive
		client *storage.DriveClient
	)

	BeforeEach(func() {
		fake = &fakeDrive{uploads: map[string]string{}}
		server := httptest.NewServer(fake)
		DeferCleanup(server.Close)

		srv, err := drive.NewService(context.Background(),
			option.WithEndpoint(server.URL+"/"),
			option.WithHTTPClient(server.Client()))
		Expect(err).ToNot(HaveOccurred())

		client, err = storage.NewDriveClientFromService(context.Background(), srv, "Meeting Transcripts", zerolog.Nop())
		Expect(err).ToNot(HaveOccurred())
	})

	It("uploads text and metadata into dated folders", func() {
		url, err := client.Upload(context.Background(), &types.Transcript{
			JobID: "job-9", Name: "standup", Text: "buenos días", Segments: 1,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(url).To(MatchRegexp(`^https://drive\.google\.com/file/d/file-\d+/view$`))

		Expect(fake.folders).To(HaveLen(4))
		Expect(fake.folders[0]).To(Equal("Meeting Transcripts"))

		var text, meta string
		for name, content := range fake.uploads {
			switch {
			case strings.HasSuffix(name, "_standup_transcript.txt"):
				text = content
			case strings.HasSuffix(name, "_standup_meta.json"):
				meta = content
			}
		}
		Expect(text).To(Equal("buenos días"))
		Expect(meta).To(ContainSubstring(`"job_id": "job-9"`))
	})

	It("downloads a recording by id", func() {
		var buf bytes.Buffer
		name, err := client.Download(context.Background(), "rec-1", &buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(name).To(Equal("standup.mp3"))
		Expect(buf.String()).To(Equal("ID3 audio bytes"))
	})

	It("fails for an unknown file", func() {
		_, err := client.Download(context.Background(), "nope", io.Discard)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PublicDrive", func() {
	It("downloads shared files through the export endpoint", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/uc" && r.URL.Query().Get("id") == "abc" && r.URL.Query().Get("export") == "download" {
				_, _ = w.Write([]byte("audio"))
				return
			}
			w.WriteHeader(http.StatusForbidden)
		}))
		DeferCleanup(server.Close)

		p := &storage.PublicDrive{BaseURL: server.URL}
		var buf bytes.Buffer
		_, err := p.Download(context.Background(), "abc", &buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf.String()).To(Equal("audio"))

		_, err = p.Download(context.Background(), "private", io.Discard)
		Expect(err).To(MatchError(ContainSubstring("not accessible")))
	})
})
