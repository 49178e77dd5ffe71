package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/visicontrol/visit-scheduler/internal/live"
	"github.com/visicontrol/visit-scheduler/internal/service"
)

// NotificationHandler exposes the in-app notification feed and its live
// SSE stream.
type NotificationHandler struct {
	Notifications *service.NotificationService
	Redis         *redis.Client // nil disables the stream endpoint
}

func NewNotificationHandler(n *service.NotificationService, rdb *redis.Client) *NotificationHandler {
	return &NotificationHandler{Notifications: n, Redis: rdb}
}

type markReadReq struct {
	IDs []uint64 `json:"ids"`
}

// List returns the caller's notifications, newest first. Query parameters:
// unread=true, limit.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	onlyUnread := c.QueryParam("unread") == "true"
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	items, err := h.Notifications.List(ctx, uid, onlyUnread, limit)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// MarkRead flags the given notification ids as read for the caller.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req markReadReq
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids required"})
	}

	ctx, cancel := reqContext(c)
	defer cancel()
	updated, err := h.Notifications.MarkRead(ctx, uid, req.IDs)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

// UnreadCount returns the caller's unread badge count.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqContext(c)
	defer cancel()
	count, err := h.Notifications.CountUnread(ctx, uid)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// Stream relays the caller's live notification channel as server-sent
// events. The connection stays open until the client disconnects. Returns
// 503 when Redis is unavailable.
func (h *NotificationHandler) Stream(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Redis == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "live stream unavailable"})
	}

	ctx := c.Request().Context()
	sub := h.Redis.Subscribe(ctx, live.UserChannel(uid))
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", msg.Payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
