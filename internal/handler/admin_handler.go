package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lromeral/sitechat/internal/ai"
	"github.com/lromeral/sitechat/internal/model"
	"github.com/lromeral/sitechat/internal/pkg/errcode"
	"github.com/lromeral/sitechat/internal/pkg/response"
	"github.com/lromeral/sitechat/internal/repo"
	"github.com/lromeral/sitechat/internal/service"
)

type AdminHandler struct {
	index   *service.IndexService
	embed   *ai.EmbedChain
	options *repo.OptionRepo
}

func NewAdminHandler(index *service.IndexService, embed *ai.EmbedChain, options *repo.OptionRepo) *AdminHandler {
	return &AdminHandler{index: index, embed: embed, options: options}
}

func (h *AdminHandler) IndexPost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.index.IndexPost(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"post_id": id})
}

func (h *AdminHandler) IndexProduct(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.index.IndexProduct(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"product_id": id})
}

func (h *AdminHandler) IndexTerm(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	taxonomy := c.Query("taxonomy")
	if err := h.index.IndexTerm(c.Request.Context(), id, taxonomy); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"term_id": id})
}

func (h *AdminHandler) IndexSite(c *gin.Context) {
	if err := h.index.IndexSiteMeta(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"indexed": true})
}

type indexDocumentRequest struct {
	SourceID   int64  `json:"source_id"`
	SourceType string `json:"source_type"`
	Text       string `json:"text"`
	MaxChunks  int    `json:"max_chunks"`
}

func (h *AdminHandler) IndexDocument(c *gin.Context) {
	var req indexDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result := h.index.IndexDocument(c.Request.Context(), req.SourceID, req.Text, model.SourceType(req.SourceType), req.MaxChunks)
	response.Success(c, result)
}

type indexRenderedRequest struct {
	PostID int64  `json:"post_id"`
	HTML   string `json:"html"`
}

func (h *AdminHandler) IndexRendered(c *gin.Context) {
	var req indexRenderedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result := h.index.IndexRendered(c.Request.Context(), req.PostID, req.HTML)
	response.Success(c, result)
}

func (h *AdminHandler) IndexQueries(c *gin.Context) {
	if err := h.index.IndexCustomQueries(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"indexed": true})
}

func (h *AdminHandler) ReindexAll(c *gin.Context) {
	if err := h.index.ReindexAll(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"reindexed": true})
}

func (h *AdminHandler) DeleteSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	sourceType := model.SourceType(c.Param("type"))
	if err := h.index.DeleteSource(c.Request.Context(), sourceType, id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Status reports the embedding chain's health and the persisted provider
// preference.
func (h *AdminHandler) Status(c *gin.Context) {
	status := gin.H{"embedding_configured": h.embed != nil}
	if h.embed != nil {
		status["embed_models"] = h.embed.ModelName()
		if last := h.embed.LastError(); last != "" {
			status["last_embed_error"] = last
		}
	}
	if h.options != nil {
		preferred, err := h.options.Preferred(c.Request.Context())
		if err == nil && preferred != "" {
			status["preferred_provider"] = preferred
		}
	}
	response.Success(c, status)
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, errcode.ErrInvalid, "invalid id")
		return 0, false
	}
	return id, true
}
