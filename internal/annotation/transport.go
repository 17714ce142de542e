package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	boarderrors "github.com/dyluth/lanes/internal/errors"
)

// Transport opens annotation streams. Implementations deliver ordered text
// fragments followed by io.EOF on clean completion or an error on failure.
type Transport interface {
	Open(ctx context.Context, content, personaID string) (Stream, error)
}

// Stream yields the text fragments of one annotation response.
type Stream interface {
	// Recv returns the next non-empty fragment, io.EOF at the end of the
	// response, or a transport error.
	Recv() (string, error)
	Close() error
}

// consultRequest is the JSON body posted to the annotation endpoint.
type consultRequest struct {
	Content   string `json:"content"`
	PersonaID string `json:"personaId"`
}

// HTTPTransport posts content to an endpoint that answers with a chunked
// plain-text body.
type HTTPTransport struct {
	endpoint  string
	client    *http.Client
	chunkSize int
}

// NewHTTPTransport creates a transport for endpoint. timeout bounds a whole
// request including the streamed body; zero means no limit.
func NewHTTPTransport(endpoint string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		chunkSize: 4096,
	}
}

// Open issues the request and returns a stream over the response body.
// Non-2xx responses are returned as STREAM errors carrying the body text.
func (t *HTTPTransport) Open(ctx context.Context, content, personaID string) (Stream, error) {
	body, err := json.Marshal(consultRequest{Content: content, PersonaID: personaID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build annotation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, boarderrors.NewStream("annotation request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, boarderrors.NewStream(
			fmt.Sprintf("annotation endpoint returned %d", resp.StatusCode),
			fmt.Errorf("%s", bytes.TrimSpace(msg)),
		)
	}

	return &httpStream{body: resp.Body, buf: make([]byte, t.chunkSize)}, nil
}

// httpStream decodes a response body into UTF-8 fragments. A multi-byte rune
// split across reads is held back until it is complete.
type httpStream struct {
	body    io.ReadCloser
	buf     []byte
	pending []byte
}

func (s *httpStream) Recv() (string, error) {
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			data := append(s.pending, s.buf[:n]...)
			cut := completePrefix(data)
			s.pending = append([]byte(nil), data[cut:]...)
			if cut > 0 {
				return string(data[:cut]), nil
			}
		}
		if err == io.EOF {
			if len(s.pending) > 0 {
				rest := string(s.pending)
				s.pending = nil
				return rest, nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", boarderrors.NewStream("annotation stream interrupted", err)
		}
	}
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

// completePrefix returns the length of the longest prefix of data that does
// not end inside a multi-byte rune.
func completePrefix(data []byte) int {
	end := len(data)
	// A UTF-8 rune is at most 4 bytes, so only the tail needs checking.
	for i := end - 1; i >= 0 && i >= end-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:end]) {
			return i
		}
		break
	}
	return end
}
