package stream

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	crerr "github.com/cockroachdb/errors"
)

// Buffer large enough for one full game_update batch line.
const maxLineBytes = 1 << 20

// HTTPTransport dials the server's newline-delimited JSON stream endpoint.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
}

// NewHTTPTransport builds a transport for baseURL (e.g. "http://host:8080").
// The provided client must not carry a global timeout; the stream is
// long-lived and is cancelled through the dial context instead.
func NewHTTPTransport(client *http.Client, baseURL string) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		client:  client,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (t *HTTPTransport) Dial(ctx context.Context, topic string) (MessageReader, error) {
	endpoint := t.baseURL + "/v1/stream?sport=" + url.QueryEscape(topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, crerr.Wrap(err, "build stream request")
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, crerr.Wrap(err, "dial stream")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, crerr.Newf("dial stream: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	return &httpMessageReader{body: resp.Body, scanner: scanner}, nil
}

type httpMessageReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (r *httpMessageReader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		return []byte(line), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, crerr.Wrap(err, "read stream line")
	}
	return nil, io.EOF
}

func (r *httpMessageReader) Close() error {
	return r.body.Close()
}
