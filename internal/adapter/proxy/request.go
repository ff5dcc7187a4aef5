package proxy

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
)

const (
	maxRequestLineBytes = 16 * 1024
	maxHeaderBytes      = 64 * 1024
	maxBodyBytes        = 32 * 1024 * 1024
)

// ReadRequest parses one HTTP/1.1 request off r, preserving header casing
// and order. net/http's reader canonicalises field names through
// textproto.MIMEHeader, which a proxy must not do, so the
// request line and header block are read directly.
func ReadRequest(r *bufio.Reader) (ports.ClientRequest, error) {
	var req ports.ClientRequest

	line, err := readWireLine(r, maxRequestLineBytes)
	if err != nil {
		if err == io.EOF {
			return req, io.EOF
		}
		return req, &domain.InvalidRequestError{Detail: fmt.Sprintf("read request line: %v", err)}
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return req, &domain.InvalidRequestError{Detail: fmt.Sprintf("malformed request line %q", line)}
	}
	req.Method, req.Target, req.Proto = parts[0], parts[1], parts[2]

	if !strings.HasPrefix(req.Proto, "HTTP/1.") {
		return req, &domain.InvalidRequestError{Detail: fmt.Sprintf("unsupported protocol version %q", req.Proto)}
	}

	headerBytes := 0
	for {
		line, err := readWireLine(r, maxHeaderBytes)
		if err != nil {
			return req, &domain.InvalidRequestError{Detail: fmt.Sprintf("read header: %v", err)}
		}
		if line == "" {
			break
		}
		headerBytes += len(line)
		if headerBytes > maxHeaderBytes {
			return req, &domain.InvalidRequestError{Detail: "header block too large"}
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return req, &domain.InvalidRequestError{Detail: fmt.Sprintf("malformed header line %q", line)}
		}
		req.Headers = append(req.Headers, ports.HeaderField{
			Name:  name,
			Value: strings.TrimLeft(value, " \t"),
		})
	}

	if req.Method == "CONNECT" {
		// CONNECT carries no body; bytes after the header block belong to
		// the tunnel, not the request.
		return req, nil
	}

	body, err := readBody(r, &req)
	if err != nil {
		return req, err
	}
	req.Body = body
	return req, nil
}

// readBody buffers the full request body: Content-Length when present,
// dechunked when Transfer-Encoding is chunked, empty otherwise.
func readBody(r *bufio.Reader, req *ports.ClientRequest) ([]byte, error) {
	if te, ok := req.Header("Transfer-Encoding"); ok {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("unsupported transfer encoding %q", te)}
		}
		return readChunkedBody(r)
	}

	clStr, ok := req.Header("Content-Length")
	if !ok {
		return nil, nil
	}
	cl, err := strconv.ParseInt(strings.TrimSpace(clStr), 10, 64)
	if err != nil || cl < 0 {
		return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("invalid content length %q", clStr)}
	}
	if cl > maxBodyBytes {
		return nil, &domain.InvalidRequestError{Detail: "request body too large"}
	}
	if cl == 0 {
		return nil, nil
	}

	body := make([]byte, cl)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("read body: %v", err)}
	}
	return body, nil
}

func readChunkedBody(r *bufio.Reader) ([]byte, error) {
	var body []byte
	for {
		sizeLine, err := readWireLine(r, 1024)
		if err != nil {
			return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("read chunk size: %v", err)}
		}
		if i := strings.IndexByte(sizeLine, ';'); i >= 0 {
			sizeLine = sizeLine[:i]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil || size < 0 {
			return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("invalid chunk size %q", sizeLine)}
		}
		if size == 0 {
			// trailer section: consume up to the final blank line
			for {
				line, err := readWireLine(r, maxHeaderBytes)
				if err != nil {
					return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("read trailer: %v", err)}
				}
				if line == "" {
					return body, nil
				}
			}
		}
		if int64(len(body))+size > maxBodyBytes {
			return nil, &domain.InvalidRequestError{Detail: "request body too large"}
		}

		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, &domain.InvalidRequestError{Detail: fmt.Sprintf("read chunk: %v", err)}
		}
		body = append(body, chunk...)

		if crlf, err := readWireLine(r, 2); err != nil || crlf != "" {
			return nil, &domain.InvalidRequestError{Detail: "missing chunk terminator"}
		}
	}
}

// readWireLine reads a CRLF-terminated line, tolerating a bare LF, and
// returns it without the terminator.
func readWireLine(r *bufio.Reader, limit int) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() == 0 {
				return "", io.EOF
			}
			return "", err
		}
		if b == '\n' {
			line := sb.String()
			return strings.TrimSuffix(line, "\r"), nil
		}
		if sb.Len() >= limit {
			return "", fmt.Errorf("line exceeds %d bytes", limit)
		}
		sb.WriteByte(b)
	}
}
