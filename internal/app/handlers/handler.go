// Package handlers orchestrates one client request end-to-end: proxy
// selection, the retry loop across peers, CONNECT tunneling or buffered
// HTTP forwarding, and the emission of one RequestRecord per attempt.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	adapterproxy "github.com/thushan/warren/internal/adapter/proxy"
	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/internal/logger"
)

// ProxyHandler is re-entrant and stateless between requests; one instance
// serves every connection.
type ProxyHandler struct {
	selector  ports.SelectionStrategy
	transport ports.Transport
	repo      ports.ProxyRepository
	sink      ports.RecordSink
	settings  func() domain.Settings
	logger    *logger.StyledLogger
}

func NewProxyHandler(
	selector ports.SelectionStrategy,
	transport ports.Transport,
	repo ports.ProxyRepository,
	sink ports.RecordSink,
	settings func() domain.Settings,
	log *logger.StyledLogger,
) *ProxyHandler {
	return &ProxyHandler{
		selector:  selector,
		transport: transport,
		repo:      repo,
		sink:      sink,
		settings:  settings,
		logger:    log,
	}
}

// HandleConnect drives the tunneling mode: select, dial, answer 200, then
// relay bytes until either side closes. Each attempt emits one record.
func (h *ProxyHandler) HandleConnect(ctx context.Context, req ports.ClientRequest, clientConn net.Conn) error {
	settings := h.settings()
	rotation := settings.Rotation
	requestID := uuid.NewString()

	var lastErr error
	for attempt := 1; attempt <= rotation.MaxAttempts(); attempt++ {
		proxy, err := h.selector.Select()
		if err != nil {
			return writeHandlerResponse(clientConn, 503, "Service Unavailable", "No proxies available")
		}

		if skipReason := h.unusableReason(proxy, rotation); skipReason != "" {
			h.record(requestID, attempt, proxy, req, false, 502, 0, skipReason)
			lastErr = errors.New(skipReason)
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, rotation.TimeoutDuration())
		start := time.Now()
		upstream, err := h.transport.Connect(connectCtx, proxy, req.Target)
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			h.record(requestID, attempt, proxy, req, false, 502, elapsed.Milliseconds(), err.Error())
			lastErr = err
			if h.logger != nil {
				h.logger.Debug("tunnel connect failed", "proxy", proxy.Address, "target", req.Target, "attempt", attempt, "error", err.Error())
			}
			continue
		}

		h.record(requestID, attempt, proxy, req, true, 200, elapsed.Milliseconds(), "")

		if err := writeHandlerResponse(clientConn, 200, "OK", ""); err != nil {
			upstream.Close()
			return err
		}

		guard := adapterproxy.NewTunnelGuard(h.selector, proxy.ID)
		adapterproxy.Relay(clientConn, upstream, guard)
		return nil
	}

	detail := "upstream connect failed"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return writeHandlerResponse(clientConn, 502, "Bad Gateway", detail)
}

// HandleForward drives the buffered forwarding mode. One success record is
// emitted for a completed response regardless of its status code; failures
// record per attempt, with a final zero-proxy record after exhaustion.
func (h *ProxyHandler) HandleForward(ctx context.Context, req ports.ClientRequest) []byte {
	settings := h.settings()
	rotation := settings.Rotation
	requestID := uuid.NewString()

	target, err := ParseForwardTarget(req.Target)
	if err != nil {
		return adapterproxy.BuildResponse(400, "Bad Request", nil, err.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= rotation.MaxAttempts(); attempt++ {
		proxy, err := h.selector.Select()
		if err != nil {
			return adapterproxy.BuildResponse(503, "Service Unavailable", nil, "No proxies available")
		}

		if skipReason := h.unusableReason(proxy, rotation); skipReason != "" {
			h.record(requestID, attempt, proxy, req, false, 502, 0, skipReason)
			lastErr = errors.New(skipReason)
			continue
		}

		outbound := BuildOutboundRequest(&req, proxy)

		requestCtx, cancel := context.WithTimeout(ctx, rotation.TimeoutDuration())
		start := time.Now()
		raw, err := h.transport.RoundTrip(requestCtx, proxy, target.Authority(), outbound, req.Method != "HEAD")
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			h.record(requestID, attempt, proxy, req, false, 502, elapsed.Milliseconds(), err.Error())
			lastErr = err
			if h.logger != nil {
				h.logger.Debug("forward attempt failed", "proxy", proxy.Address, "target", req.Target, "attempt", attempt, "error", err.Error())
			}
			continue
		}

		statusCode := parseStatusCode(raw)
		h.record(requestID, attempt, proxy, req, true, statusCode, elapsed.Milliseconds(), "")
		return raw
	}

	// Terminal failure: one more record with no proxy attributed.
	detail := "upstream retries exhausted"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	h.recordFinalFailure(requestID, rotation.MaxAttempts()+1, req, detail)

	if isTimeout(lastErr) {
		return adapterproxy.BuildResponse(504, "Gateway Timeout", nil, detail)
	}
	return adapterproxy.BuildResponse(502, "Bad Gateway", nil, detail)
}

// unusableReason reports why a selected proxy cannot serve this request,
// or "" when it can. Disallowed protocols are skipped without dialling.
func (h *ProxyHandler) unusableReason(proxy *domain.Proxy, rotation domain.RotationSettings) string {
	if !proxy.Protocol.IsAllowed() {
		return fmt.Sprintf("unsupported protocol: %s", proxy.Protocol)
	}
	if len(rotation.AllowedProtocols) == 0 {
		return ""
	}
	for _, allowed := range rotation.AllowedProtocols {
		if proxy.Protocol == allowed {
			return ""
		}
	}
	return fmt.Sprintf("protocol %s not in allowed set", proxy.Protocol)
}

func (h *ProxyHandler) record(requestID string, attempt int, proxy *domain.Proxy, req ports.ClientRequest, success bool, statusCode int, elapsedMs int64, errMsg string) {
	rec := domain.RequestRecord{
		ID:             requestID,
		Attempt:        attempt,
		ProxyID:        proxy.ID,
		ProxyAddress:   proxy.Address,
		RequestedURL:   req.Target,
		Method:         req.Method,
		Success:        success,
		ResponseTimeMs: elapsedMs,
		StatusCode:     statusCode,
		ErrorMessage:   errMsg,
		Timestamp:      time.Now(),
	}
	h.emit(rec)
}

func (h *ProxyHandler) recordFinalFailure(requestID string, attempt int, req ports.ClientRequest, errMsg string) {
	rec := domain.RequestRecord{
		ID:           requestID,
		Attempt:      attempt,
		RequestedURL: req.Target,
		Method:       req.Method,
		StatusCode:   502,
		ErrorMessage: errMsg,
		Timestamp:    time.Now(),
	}
	h.emit(rec)
}

// emit broadcasts the record and persists it, neither of which may block
// or fail the serving path.
func (h *ProxyHandler) emit(rec domain.RequestRecord) {
	if h.sink != nil {
		h.sink.Publish(rec)
	}
	if h.repo != nil && rec.ProxyID != 0 {
		go h.repo.RecordRequest(rec.ProxyID, rec.Success, float64(rec.ResponseTimeMs), rec.ErrorMessage)
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func writeHandlerResponse(conn net.Conn, statusCode int, reason, body string) error {
	if statusCode == 200 {
		// The CONNECT success response must not close the connection: the
		// tunnel rides on it.
		_, err := fmt.Fprintf(conn, "HTTP/1.1 200 %s\r\n\r\n", reason)
		return err
	}
	_, err := conn.Write(adapterproxy.BuildResponse(statusCode, reason, nil, body))
	return err
}

func parseStatusCode(raw []byte) int {
	// "HTTP/1.1 200 OK" -- status code sits between the first two spaces.
	var code, i int
	for ; i < len(raw) && raw[i] != ' '; i++ {
	}
	for i++; i < len(raw) && raw[i] >= '0' && raw[i] <= '9'; i++ {
		code = code*10 + int(raw[i]-'0')
	}
	if code < 100 || code > 599 {
		return 0
	}
	return code
}
