package llm

import (
	"bufio"
	"io"
	"strings"
)

const maxSSELine = 1 << 20

// sseStream reads "data:" events and turns each into a text delta.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  func(payload []byte) (string, error)
	cur     string
	err     error
}

func newSSEStream(body io.ReadCloser, decode func([]byte) (string, error)) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &sseStream{body: body, scanner: scanner, decode: decode}
}

func (s *sseStream) Next() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		text, err := s.decode([]byte(payload))
		if err != nil {
			s.err = err
			return false
		}
		if text == "" {
			continue
		}
		s.cur = text
		return true
	}
	s.err = s.scanner.Err()
	return false
}

func (s *sseStream) Current() string { return s.cur }

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error { return s.body.Close() }
