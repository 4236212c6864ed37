package api

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/internal/chat"
	"github.com/adeilh/emergency-backend/model"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

func (a *API) aiChat(c httpx.Context) error {
	var in chatRequest
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Message) == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "message is required")
	}
	conv := in.ConversationID
	if conv == "" {
		conv = "conv_" + model.NewID()
	}

	reply, err := a.chat.Complete(c.Request().Context(), in.Message)
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		return httpx.HTTPError(httpx.StatusServiceUnavailable, "AI service not configured")
	case errors.Is(err, chat.ErrUpstream), errors.Is(err, chat.ErrEmpty):
		a.log.Warnj(log.JSON{"event": "ai_chat_failed", "conversation_id": conv, "error": err.Error()})
		return httpx.HTTPError(httpx.StatusBadGateway, "AI service temporarily unavailable")
	case err != nil:
		return a.fail(c, err, "")
	}
	a.log.Infoj(log.JSON{"event": "ai_chat", "conversation_id": conv})
	return c.JSON(httpx.StatusOK, chatResponse{Response: reply, ConversationID: conv, Timestamp: a.now().UTC()})
}
