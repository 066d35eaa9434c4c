package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/store"
)

// Notice describes a transition applied at a lot.
type Notice struct {
	LotID        int64
	Action       model.ParkingAction
	SessionID    int64
	PlateNumber  string
	VehicleLabel string
	At           time.Time
}

// Message renders the push payload for the notice.
func (n Notice) Message() string {
	verb := "입차"
	if n.Action == model.ActionExit {
		verb = "출차"
	}
	if n.VehicleLabel != "" {
		return fmt.Sprintf("차량 %s (%s) %s", n.PlateNumber, n.VehicleLabel, verb)
	}
	return fmt.Sprintf("차량 %s %s", n.PlateNumber, verb)
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans lot notices out to their push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool with room for queue pending notices.
func NewWorkerPool(size, queue int, subs store.SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queue < size {
		queue = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, queue),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case n := <-wp.jobs:
			wp.sendNotificationsForLot(ctx, n)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a notice. It never blocks: when the queue is full the
// notice is dropped.
func (wp *WorkerPool) Dispatch(n Notice) {
	select {
	case wp.jobs <- n:
	default:
		log.Printf("Notification queue full, dropping %s notice for %s in lot %d", n.Action, n.PlateNumber, n.LotID)
	}
}

func (wp *WorkerPool) sendNotificationsForLot(ctx context.Context, n Notice) {
	subscriptions, err := wp.subs.SubscriptionsForLot(ctx, n.LotID)
	if err != nil {
		log.Printf("Error fetching subscriptions for lot %d: %v", n.LotID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for lot %d", len(subscriptions), n.LotID)
	payload := []byte(n.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

// SetSender replaces the push sender. Used by tests.
func (wp *WorkerPool) SetSender(s NotificationSender) {
	wp.sender = s
}
