package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateConversation(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
	StreamChat(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	CacheStats(ctx *fiber.Ctx) error
	ClearCache(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("session", c.CreateConversation)
	h.Post("stream", c.StreamChat)
	h.Get("ws", c.ServeWs)
	h.Get("cache/stats", c.CacheStats)
	h.Delete("cache", c.ClearCache)
	h.Post("", c.SendChat)
	h.Get(":sessionId/history", c.GetHistory)
	h.Delete(":sessionId", c.DeleteConversation)
}

func (c *chatController) CreateConversation(ctx *fiber.Ctx) error {
	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if req.OwnerId == uuid.Nil {
		req.OwnerId = uuid.New() // anonymous conversations get a fresh owner
	}

	res, err := c.chatService.CreateConversation(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendChat(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

// StreamChat answers the query over Server-Sent Events. Each pipeline event
// becomes one SSE message; the stream ends with a single done or error event.
func (c *chatController) StreamChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	bridge, err := c.chatService.StreamChat(ctx.Context(), &req)
	if err != nil {
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for ev := range bridge.Events() {
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				data = []byte("{}")
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				bridge.Close()
				return
			}
			if err := w.Flush(); err != nil {
				// Client went away. The pipeline keeps running; the bridge
				// absorbs whatever it still emits.
				bridge.Close()
				return
			}
		}
	}))

	return nil
}

// ServeWs answers queries over a websocket. The first text message must be a
// SendChatRequest; events are written back as JSON until the terminal event.
func (c *chatController) ServeWs(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req dto.SendChatRequest
		if err := json.Unmarshal(raw, &req); err != nil || req.ConversationId == uuid.Nil || req.Query == "" {
			_ = conn.WriteJSON(fiber.Map{"type": "error", "payload": fiber.Map{"error": "invalid request"}})
			return
		}

		bridge, err := c.chatService.StreamChat(context.Background(), &req)
		if err != nil {
			_ = conn.WriteJSON(fiber.Map{"type": "error", "payload": fiber.Map{"error": err.Error()}})
			return
		}

		for ev := range bridge.Events() {
			if err := conn.WriteJSON(ev); err != nil {
				c.logger.Warn("ChatController", "WebSocket write failed, detaching consumer", map[string]interface{}{"error": err.Error()})
				bridge.Close()
				return
			}
		}
	})(ctx)
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return serverutils.NewBadRequestError("invalid session id", err)
	}

	res, err := c.chatService.GetChatHistory(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) DeleteConversation(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("sessionId"))
	if err != nil {
		return serverutils.NewBadRequestError("invalid session id", err)
	}

	if err := c.chatService.DeleteConversation(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete conversation", nil))
}

func (c *chatController) CacheStats(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get cache stats", c.chatService.CacheStats()))
}

func (c *chatController) ClearCache(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success clear cache", c.chatService.ClearCache()))
}
