package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // legacy X-Hub-Signature header
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fclairamb/docmap/internal/version"
)

const (
	headerSignature256 = "X-Hub-Signature-256"
	headerSignature1   = "X-Hub-Signature"
	headerEvent        = "X-GitHub-Event"
	headerDelivery     = "X-GitHub-Delivery"

	maxPayloadSize = 10 << 20
)

// PushEvent is the subset of a push notification payload the handler reads.
type PushEvent struct {
	Ref        string `json:"ref"`
	Before     string `json:"before,omitempty"`
	After      string `json:"after,omitempty"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
}

// Notifier is told that a pass should run.
type Notifier interface {
	Notify()
}

// Handler handles incoming webhook requests.
type Handler struct {
	secret   string
	ref      string
	notifier Notifier
	logger   *slog.Logger
}

// NewHandler creates a new webhook handler. An empty secret disables signature checks.
func NewHandler(secret, ref string, notifier Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		secret:   secret,
		ref:      ref,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleWebhook validates a push notification and, when it targets the
// tracked ref, schedules a pass. It never waits for the pass.
func (h *Handler) HandleWebhook(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	body, err := io.ReadAll(io.LimitReader(req.Body, maxPayloadSize))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read webhook payload", "error", err)
		http.Error(writer, "Invalid payload", http.StatusBadRequest)
		return
	}

	if status, msg := h.checkSignature(req.Header, body); status != http.StatusOK {
		h.logger.WarnContext(ctx, "rejected webhook", "reason", msg, "delivery", req.Header.Get(headerDelivery))
		http.Error(writer, msg, status)
		return
	}

	// Ping events are sent when the hook is registered.
	if req.Header.Get(headerEvent) == "ping" {
		writeJSON(writer, http.StatusOK, map[string]string{"status": "pong"})
		return
	}

	var event PushEvent
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&event); err != nil {
		h.logger.WarnContext(ctx, "failed to decode webhook", "error", err)
		http.Error(writer, "Invalid payload", http.StatusBadRequest)
		return
	}
	if event.Ref == "" {
		http.Error(writer, "Missing ref", http.StatusBadRequest)
		return
	}
	if event.Ref != h.ref {
		h.logger.InfoContext(ctx, "ignoring push to other ref", "ref", event.Ref, "tracked", h.ref)
		http.Error(writer, "Ref not tracked", http.StatusNotAcceptable)
		return
	}

	h.logger.InfoContext(ctx, "push received",
		"ref", event.Ref,
		"after", event.After,
		"repository", event.Repository.FullName,
		"pusher", event.Pusher.Name)

	if h.notifier != nil {
		h.notifier.Notify()
	}

	writeJSON(writer, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// checkSignature verifies the HMAC of body. The sha256 header wins over the legacy sha1 one.
func (h *Handler) checkSignature(header http.Header, body []byte) (int, string) {
	if h.secret == "" {
		return http.StatusOK, ""
	}

	var (
		signature string
		prefix    string
		newHash   func() hash.Hash
	)
	switch {
	case header.Get(headerSignature256) != "":
		signature, prefix, newHash = header.Get(headerSignature256), "sha256=", sha256.New
	case header.Get(headerSignature1) != "":
		signature, prefix, newHash = header.Get(headerSignature1), "sha1=", sha1.New
	default:
		return http.StatusBadRequest, "Missing signature"
	}

	if !strings.HasPrefix(signature, prefix) {
		return http.StatusUnauthorized, "Invalid signature"
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, prefix))
	if err != nil {
		return http.StatusUnauthorized, "Invalid signature"
	}

	mac := hmac.New(newHash, []byte(h.secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return http.StatusUnauthorized, "Invalid signature"
	}
	return http.StatusOK, ""
}

// HandleVersion handles the /api/version endpoint.
func (h *Handler) HandleVersion(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_time": version.GitTime,
	})
}

// HandleHealth handles the /health endpoint for health checks.
func (h *Handler) HandleHealth(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}
