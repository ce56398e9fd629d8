package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lromeral/sitechat/internal/pkg/errcode"
	"github.com/lromeral/sitechat/internal/pkg/response"
	"github.com/lromeral/sitechat/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatMessageRequest struct {
	Message       string `json:"message"`
	CurrentPostID int64  `json:"current_post_id"`
	CurrentURL    string `json:"current_url"`
	SessionID     string `json:"session_id"`
}

func (h *ChatHandler) Message(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	reply, err := h.chat.ProcessMessage(c.Request.Context(), service.ChatRequest{
		Message:       req.Message,
		CurrentPostID: req.CurrentPostID,
		CurrentURL:    req.CurrentURL,
		SessionID:     req.SessionID,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"reply": reply})
}
