package push

import (
	"context"
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/repository"
)

// Notification — полезная нагрузка Web Push, которую разворачивает service worker.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender отправляет Web Push по подпискам из БД. Нулевые VAPID-ключи
// означают, что пуши отключены: Notify молча ничего не делает.
type Sender struct {
	repo  *repository.PushSubscriptionRepository
	vapid *webpush.Options
}

func NewSender(repo *repository.PushSubscriptionRepository, publicKey, privateKey string) *Sender {
	s := &Sender{repo: repo}
	if publicKey != "" && privateKey != "" {
		s.vapid = &webpush.Options{
			Subscriber:      "dormlink-push",
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             30,
		}
	}
	return s
}

// Enabled сообщает, настроены ли VAPID-ключи.
func (s *Sender) Enabled() bool { return s.vapid != nil }

// Notify отправляет уведомление на все подписки пользователя.
// Мёртвые подписки (404/410 от пуш-шлюза) удаляются из БД по ходу.
// Ошибки доставки логируются и не прерывают рассылку.
func (s *Sender) Notify(ctx context.Context, userID string, n Notification) {
	if s.vapid == nil {
		return
	}
	subs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		logger.Errorf("push: список подписок %s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Errorf("push: кодирование payload: %v", err)
		return
	}
	for i := range subs {
		s.send(ctx, &subs[i], payload)
	}
}

func (s *Sender) send(ctx context.Context, sub *model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
	if err != nil {
		logger.Errorf("push: отправка %s: %v", sub.Endpoint[:min(50, len(sub.Endpoint))], err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode == 410 || resp.StatusCode == 404 {
		if err := s.repo.Delete(ctx, sub.UserID, sub.Endpoint); err != nil {
			logger.Errorf("push: удаление мёртвой подписки: %v", err)
		}
	}
}
