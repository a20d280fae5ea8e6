package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // Intercom signs webhooks with HMAC-SHA1
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/threadline/internal/logger"
)

// TopicConversationClosed is the webhook topic that triggers a store.
const TopicConversationClosed = "conversation.closed"

// SignatureHeader carries "sha1=<hex hmac of the body>".
const SignatureHeader = "X-Hub-Signature"

type webhookPayload struct {
	Topic string `json:"topic" validate:"required"`
	Data  struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	} `json:"data"`
}

// handleWebhook acknowledges immediately. Storing a closed conversation runs
// in the background.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	if s.opts.WebhookSecret != "" && !ValidSignature(s.opts.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		logger.Warnw("webhook signature rejected", "app", appID)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := s.validate.Struct(&payload); err != nil {
		writeError(w, http.StatusBadRequest, validationError(err).Error())
		return
	}

	if payload.Topic == TopicConversationClosed && payload.Data.Item.ID != "" {
		conversationID := payload.Data.Item.ID
		s.background("webhook "+conversationID, func(ctx context.Context) error {
			stored, err := s.services.Importer.StoreConversation(ctx, appID, s.opts.WebhookUser, conversationID)
			if err != nil {
				return err
			}
			logger.Infow("webhook conversation handled", "app", appID, "conversation", conversationID, "stored", stored)
			return nil
		})
	} else {
		logger.Debugw("webhook ignored", "app", appID, "topic", payload.Topic)
	}

	writeJSON(w, http.StatusOK, acceptedResponse{Success: true})
}

// Sign returns the X-Hub-Signature value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature reports whether header is the signature of body.
func ValidSignature(secret string, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha1=")
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
