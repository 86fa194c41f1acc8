// Package download saves the documents behind a search result to disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/Sternrassler/arxiv-client/pkg/feed"
	"github.com/Sternrassler/arxiv-client/pkg/ratelimit"
)

// Prometheus metrics for downloads.
var downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "arxiv_downloads_total",
	Help: "Total document downloads by kind and status",
}, []string{"kind", "status"})

// File extensions for the two document kinds.
const (
	ExtPDF    = "pdf"
	ExtSource = "tar.gz"
)

const untitled = "UNTITLED"

// ErrNoDocumentLink is returned when a result has no PDF link to resolve.
var ErrNoDocumentLink = errors.New("result has no document link")

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]`)

// Config holds the downloader configuration.
type Config struct {
	// HTTPClient performs the downloads (default: http.DefaultClient).
	HTTPClient *http.Client

	// UserAgent is sent with every download.
	UserAgent string

	// Limiter, when set, gates every download like an API request.
	Limiter ratelimit.Limiter
}

// Downloader streams result documents to local files.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	limiter    ratelimit.Limiter
	logger     zerolog.Logger
}

// New creates a downloader.
func New(cfg Config) *Downloader {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Downloader{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		limiter:    cfg.Limiter,
		logger:     log.With().Str("component", "arxiv-download").Logger(),
	}
}

// Filename derives the default file name for a result: the short id with
// "/" replaced, the title with every non-word character replaced, and ext,
// joined by dots.
func Filename(r *feed.Result, ext string) string {
	title := r.Title
	if title == "" {
		title = untitled
	}
	title = nonWord.ReplaceAllString(norm.NFC.String(title), "_")
	shortID := strings.ReplaceAll(r.ShortID(), "/", "_")
	return shortID + "." + title + "." + ext
}

// PDF downloads the primary document of r into dir and returns its path.
// An empty filename selects Filename(r, ExtPDF).
func (d *Downloader) PDF(ctx context.Context, r *feed.Result, dir, filename string) (string, error) {
	if r.PDFURL == "" {
		return "", fmt.Errorf("download pdf %s: %w", r.EntryID, ErrNoDocumentLink)
	}
	if filename == "" {
		filename = Filename(r, ExtPDF)
	}
	return d.save(ctx, "pdf", r.PDFURL, dir, filename)
}

// Source downloads the source tarball of r into dir and returns its path.
// An empty filename selects Filename(r, ExtSource).
func (d *Downloader) Source(ctx context.Context, r *feed.Result, dir, filename string) (string, error) {
	src := r.SourceURL()
	if src == "" {
		return "", fmt.Errorf("download source %s: %w", r.EntryID, ErrNoDocumentLink)
	}
	if filename == "" {
		filename = Filename(r, ExtSource)
	}
	return d.save(ctx, "source", src, dir, filename)
}

// save streams url into dir/filename. The file appears only once the body
// has been fully written.
func (d *Downloader) save(ctx context.Context, kind, url, dir, filename string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, filename)

	if d.limiter != nil {
		if err := d.limiter.Acquire(ctx); err != nil {
			return "", fmt.Errorf("download %s: %w", url, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		downloadsTotal.WithLabelValues(kind, "network_error").Inc()
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	downloadsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move %s into place: %w", path, err)
	}

	d.logger.Info().
		Str("kind", kind).
		Str("url", url).
		Str("path", path).
		Int64("bytes", written).
		Msg("Downloaded document")

	return path, nil
}
