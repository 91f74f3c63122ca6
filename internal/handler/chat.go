package handler

import (
	"net/http"

	"github.com/modestmuse/museshop/internal/assistant"
)

type chatRequest struct {
	Messages []assistant.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat answers one turn of the shopping assistant conversation.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}

	reply, err := h.assistant.Chat(r.Context(), req.Messages)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, chatResponse{Reply: reply}, nil)
}
