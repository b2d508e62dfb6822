// Package audio provides media backends for the transport engine.
package audio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrTooLarge          = errors.New("audio file too large")
)

// DefaultMaxBytes bounds a single download.
const DefaultMaxBytes = 512 << 20

// Fetcher downloads audio sources.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads rawURL into memory.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch audio")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf("server error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audio")
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "limit=%d", f.maxBytes)
	}
	return data, nil
}

// readSeekCloser lets decoders seek within a downloaded buffer.
type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

// Decode decodes data as the format implied by rawURL, falling back to mp3.
func Decode(rawURL string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := readSeekCloser{bytes.NewReader(data)}

	switch formatOf(rawURL) {
	case ".wav":
		s, format, err := wav.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, errors.Wrap(err, "failed to decode wav")
		}
		return s, format, nil
	case ".mp3", "":
		s, format, err := mp3.Decode(rc)
		if err != nil {
			return nil, beep.Format{}, errors.Wrap(err, "failed to decode mp3")
		}
		return s, format, nil
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "url=%s", rawURL)
	}
}

// formatOf returns the lowercase extension of the URL path.
// URLs without an extension, like catalog-hosted files, report "".
func formatOf(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// Seconds converts a sample count to seconds.
func Seconds(format beep.Format, samples int) float64 {
	return format.SampleRate.D(samples).Seconds()
}

// Samples converts seconds to a sample count.
func Samples(format beep.Format, seconds float64) int {
	return format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
}

// HTTPProber reports durations by downloading and decoding the source.
type HTTPProber struct {
	fetcher *Fetcher
}

// NewHTTPProber creates a prober backed by fetcher.
func NewHTTPProber(fetcher *Fetcher) *HTTPProber {
	return &HTTPProber{fetcher: fetcher}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) (float64, error) {
	data, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	s, format, err := Decode(rawURL, data)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	if s.Len() <= 0 {
		return 0, errors.Newf("empty audio stream: url=%s", rawURL)
	}
	return Seconds(format, s.Len()), nil
}
