package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydra-scheduler/hydra/internal/domain"
	"github.com/hydra-scheduler/hydra/internal/usecase"
)

// AdminHandler implements §6's `/admin/domains...` tenant management
// endpoints, from original_source/scheduler/api/admin.py.
type AdminHandler struct {
	domains *usecase.DomainUsecase
	logger  *slog.Logger
}

func NewAdminHandler(domains *usecase.DomainUsecase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{domains: domains, logger: logger.With("component", "admin_handler")}
}

type createDomainRequest struct {
	Name        string `json:"name" binding:"required,alphanum,max=64"`
	DisplayName string `json:"displayName" binding:"required,max=256"`
	Description string `json:"description"`
}

func (h *AdminHandler) Create(c *gin.Context) {
	var req createDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, token, err := h.domains.Create(c.Request.Context(), req.Name, req.DisplayName, req.Description)
	if err != nil {
		if errors.Is(err, domain.ErrDomainConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": errDomainConflict})
			return
		}
		h.logger.Error("create domain", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"domain": created, "token": token})
}

type updateDomainRequest struct {
	DisplayName string `json:"displayName" binding:"required,max=256"`
	Description string `json:"description"`
}

func (h *AdminHandler) Update(c *gin.Context) {
	var req updateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.domains.Update(c.Request.Context(), c.Param("domain"), req.DisplayName, req.Description)
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *AdminHandler) RotateToken(c *gin.Context) {
	token, err := h.domains.RotateToken(c.Request.Context(), c.Param("domain"))
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) Delete(c *gin.Context) {
	if err := h.domains.Delete(c.Request.Context(), c.Param("domain")); err != nil {
		h.writeLookupError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) List(c *gin.Context) {
	domains, err := h.domains.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list domains", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

func (h *AdminHandler) writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrDomainNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": errDomainNotFound})
		return
	}
	h.logger.Error("domain lookup", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}
