package api

import (
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stealth-alerts/internal/errors"
	"github.com/stealth-alerts/internal/types"
)

// handleCron runs every alert definition once. Scheduler-invoked.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RunAll(r.Context()); err != nil {
		status, code, message := mapEngineError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// handleWallets refreshes the watched top-wallet set. Scheduler-invoked.
func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.RefreshTopWallets(r.Context())
	if err != nil {
		status, code, message := mapEngineError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"wallets": count,
	})
}

// handleAddressActivity ingests one push delivery of on-chain activity.
// The sender retries on non-2xx, so only a malformed payload is rejected;
// processing failures are logged and reported out-of-band. Replayed
// deliveries are acknowledged as duplicates so retries stay silent.
func (s *Server) handleAddressActivity(w http.ResponseWriter, r *http.Request) {
	var payload types.WebhookPayload
	if err := parseJSONBody(r, &payload); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok":    false,
			"error": "invalid webhook payload",
		})
		return
	}

	if err := s.engine.HandleActivity(r.Context(), &payload); err != nil {
		switch {
		case errors.IsCategory(err, errors.CategoryDuplicateWebhook):
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"ok":        true,
				"duplicate": true,
			})
			return
		case errors.IsCategory(err, errors.CategoryValidation):
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"ok":    false,
				"error": err.Error(),
			})
			return
		default:
			s.logger.WithError(err).Error("Webhook processing failed")
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}

// handleTelegramUpdate ingests Telegram webhook updates. Telegram only
// needs a 200; processing failures are logged, not surfaced.
func (s *Server) handleTelegramUpdate(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := parseJSONBody(r, &update); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid update payload", nil)
		return
	}

	s.bot.HandleUpdate(r.Context(), update)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
