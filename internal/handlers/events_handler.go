package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"planora/internal/logger"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// StreamEvents отдаёт события синхронизации доски по WebSocket.
// Сообщения клиента игнорируются.
func (h *TaskHandler) StreamEvents(origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.HttpRequestInfo(r, "HTTP_IN:")
		projectID := chi.URLParam(r, "projectID")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: origins,
		})
		if err != nil {
			logger.Warn("Events: ошибка апгрейда соединения",
				zap.Error(err),
				zap.String("client_ip", r.RemoteAddr))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		stream, cancel := h.Events.Subscribe(projectID)
		defer cancel()

		logger.Info("Events: клиент подключён", zap.String("project_id", projectID))

		// CloseRead читает входящие кадры и отменяет контекст при отключении
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				logger.Info("Events: клиент отключён", zap.String("project_id", projectID))
				return
			case event, ok := <-stream:
				if !ok {
					return
				}
				if err := writeEvent(ctx, conn, event); err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Warn("Events: ошибка отправки", zap.Error(err),
							zap.String("project_id", projectID))
					}
					return
				}
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
