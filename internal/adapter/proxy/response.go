package proxy

import (
	"fmt"
	"io"
	"strings"

	"github.com/thushan/warren/internal/core/constants"
	"github.com/thushan/warren/internal/core/ports"
)

// BuildResponse serialises a minimal HTTP/1.1 response the proxy emits
// itself: terminal errors, the CONNECT 200, auth challenges. extraHeaders
// are written verbatim, in order.
func BuildResponse(statusCode int, reason string, extraHeaders []ports.HeaderField, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", statusCode, reason)
	for _, h := range extraHeaders {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	if body != "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func writeResponse(w io.Writer, statusCode int, reason string, extraHeaders []ports.HeaderField, body string) error {
	_, err := w.Write(BuildResponse(statusCode, reason, extraHeaders, body))
	return err
}

func writeAuthChallenge(w io.Writer) error {
	headers := []ports.HeaderField{
		{Name: "Proxy-Authenticate", Value: constants.ProxyAuthRealm},
	}
	return writeResponse(w, 407, "Proxy Authentication Required", headers, "Proxy authentication required")
}
