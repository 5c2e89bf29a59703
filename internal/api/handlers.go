package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"skychat/internal/models"
	"skychat/internal/service/chat"
)

const headerRequestID = "X-Request-ID"

type ChatService interface {
	Turn(ctx context.Context, req models.ChatRequest) (*chat.Result, error)
	History(ctx context.Context, userID string) ([]models.Message, error)
}

// Handler wires HTTP routes to the chat service.
type Handler struct {
	chat ChatService
}

// NewHandler constructs a Handler instance.
func NewHandler(service ChatService) *Handler {
	return &Handler{chat: service}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.root)
	router.POST("/chat", h.postChat)
	router.GET("/history/:user_id", h.getHistory)
}

// NewRouter builds the full HTTP stack: gin with request ids, wrapped in
// a permissive CORS layer.
func NewRouter(h *Handler) http.Handler {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), requestID())
	h.RegisterRoutes(router)

	return cors.Handler(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{headerRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}

// requestID stamps every request and response with X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set(headerRequestID, reqID)
		}
		c.Set(headerRequestID, reqID)
		c.Header(headerRequestID, reqID)
		c.Next()
	}
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Backend is running"})
}

func (h *Handler) postChat(c *gin.Context) {
	reqID := c.GetString(headerRequestID)
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": chat.ErrInvalidRequest.Error()})
		return
	}

	log.Printf("[%s] chat turn for user %s", reqID, req.UserID)
	res, err := h.chat.Turn(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[%s] chat turn for user %s failed: %v", reqID, req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[%s] chat turn for user %s done (reply=%s, tool_calls=%d)", reqID, req.UserID, res.ReplyKind, res.ToolCalls)
	c.JSON(http.StatusOK, gin.H{"response": res.Response})
}

func (h *Handler) getHistory(c *gin.Context) {
	userID := c.Param("user_id")
	msgs, err := h.chat.History(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[%s] load history for user %s failed: %v", c.GetString(headerRequestID), userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = make([]models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"history": msgs})
}
