package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bestiary-server/internal/middleware"
	"bestiary-server/internal/models"
	"bestiary-server/internal/service"
)

// TokenVerifier проверяет access-токен и возвращает claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// MonsterHandler - HTTP API бестиария.
type MonsterHandler struct {
	service  service.MonsterService
	verifier TokenVerifier
	logger   *zap.Logger
}

func NewMonsterHandler(svc service.MonsterService, verifier TokenVerifier, logger *zap.Logger) *MonsterHandler {
	return &MonsterHandler{
		service:  svc,
		verifier: verifier,
		logger:   logger.Named("MonsterHandler"),
	}
}

// RegisterRoutes регистрирует маршруты /api/monsters. Все маршруты требуют JWT.
func (h *MonsterHandler) RegisterRoutes(router gin.IRouter) {
	monsters := router.Group("/api/monsters")
	monsters.Use(h.AuthMiddleware())
	{
		monsters.POST("", h.generateMonster)
		monsters.GET("", h.listOwnMonsters)
		monsters.GET("/admin", h.listAllMonsters)
		monsters.GET("/image/:id", h.getMonsterImage)
		monsters.GET("/:id", h.getMonster)
		monsters.DELETE("/delete/:id", h.deleteMonster)
		monsters.PUT("/edit/:id", h.renameMonster)
	}
}

func (h *MonsterHandler) generateMonster(c *gin.Context) {
	principal := mustPrincipal(c)
	var brief models.CreatureBrief
	if err := c.ShouldBindJSON(&brief); err != nil {
		h.logger.Warn("Invalid generation request body", zap.Uint64("user_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	monster, err := h.service.Generate(c.Request.Context(), principal, brief, middleware.GetRequestID(c))
	if err != nil {
		generationsTotal.WithLabelValues(generationStatus(err)).Inc()
		handleServiceError(c, opGenerate, err)
		return
	}
	generationsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, monster)
}

func (h *MonsterHandler) listOwnMonsters(c *gin.Context) {
	monsters, err := h.service.ListOwn(c.Request.Context(), mustPrincipal(c))
	if err != nil {
		handleServiceError(c, opList, err)
		return
	}
	c.JSON(http.StatusOK, monsters)
}

func (h *MonsterHandler) listAllMonsters(c *gin.Context) {
	monsters, err := h.service.ListAll(c.Request.Context(), mustPrincipal(c))
	if err != nil {
		handleServiceError(c, opList, err)
		return
	}
	c.JSON(http.StatusOK, monsters)
}

func (h *MonsterHandler) getMonster(c *gin.Context) {
	id, ok := parseMonsterID(c)
	if !ok {
		return
	}
	monster, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, opGet, err)
		return
	}
	c.JSON(http.StatusOK, monster)
}

func (h *MonsterHandler) getMonsterImage(c *gin.Context) {
	id, ok := parseMonsterID(c)
	if !ok {
		return
	}
	imageURL, err := h.service.GetImage(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, opImage, err)
		return
	}
	c.JSON(http.StatusOK, models.ImageResponse{Image: imageURL})
}

func (h *MonsterHandler) deleteMonster(c *gin.Context) {
	id, ok := parseMonsterID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, mustPrincipal(c)); err != nil {
		handleServiceError(c, opDelete, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Monster deleted successfully"})
}

func (h *MonsterHandler) renameMonster(c *gin.Context) {
	id, ok := parseMonsterID(c)
	if !ok {
		return
	}
	var req models.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	monster, err := h.service.Rename(c.Request.Context(), id, mustPrincipal(c), req.Name)
	if err != nil {
		handleServiceError(c, opRename, err)
		return
	}
	c.JSON(http.StatusOK, monster)
}

func parseMonsterID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid monster ID"})
		return 0, false
	}
	return id, true
}
