package player

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Media is a fetched, seekable audio resource
type Media struct {
	Body io.ReadSeekCloser
	// ContentType is the media type without parameters, empty when unknown
	ContentType string
	// Name is the path part of the source, used to guess the format by
	// extension
	Name string
}

// Fetcher opens a source. Failures should be MediaErrors; anything else is
// treated as a network failure.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (*Media, error)
}

// DefaultMaxBytes caps how much of a remote source is downloaded
const DefaultMaxBytes = 256 << 20

// HTTPFetcher downloads http(s) sources into memory so they can be seeked
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func (f HTTPFetcher) Fetch(ctx context.Context, source string) (*Media, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, mediaError(ReasonNetwork, errors.Wrap(err, "bad request"))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fetchError(ctx, errors.Wrapf(err, "GET %s", source))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mediaError(ReasonNetwork, errors.Errorf("GET %s: %s", source, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fetchError(ctx, errors.Wrapf(err, "read %s", source))
	}
	if int64(len(data)) > limit {
		return nil, mediaError(ReasonNetwork, errors.Errorf("%s is larger than %d bytes", source, limit))
	}

	return &Media{
		Body:        memBody{bytes.NewReader(data)},
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Name:        resp.Request.URL.Path,
	}, nil
}

// FileFetcher opens local paths and file:// URLs
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, source string) (*Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, mediaError(ReasonAborted, err)
	}
	name := source
	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		name = u.Path
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, mediaError(ReasonNetwork, errors.Wrap(err, "open"))
	}
	return &Media{Body: f, ContentType: mediaType(mime.TypeByExtension(path.Ext(name))), Name: name}, nil
}

// Sources picks a fetcher by URL scheme: http and https go to HTTP, anything
// else is a file
type Sources struct {
	HTTP Fetcher
	File Fetcher
}

// DefaultFetcher fetches over the network with the default client and from
// the local filesystem
func DefaultFetcher() Fetcher {
	return Sources{HTTP: HTTPFetcher{}, File: FileFetcher{}}
}

func (s Sources) Fetch(ctx context.Context, source string) (*Media, error) {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s.HTTP.Fetch(ctx, source)
	}
	return s.File.Fetch(ctx, source)
}

func fetchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return mediaError(ReasonAborted, err)
	}
	return mediaError(ReasonNetwork, err)
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return t
}

type memBody struct{ *bytes.Reader }

func (memBody) Close() error { return nil }
