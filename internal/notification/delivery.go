package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Provider delivers a notification over an external channel (push,
// email). Delivery is best-effort: the row is already durable before a
// provider sees it.
type Provider interface {
	Send(ctx context.Context, n *Notification) error
}

// Delivery fans persisted notifications out to providers on a small
// worker pool. Enqueue never blocks the caller's request: a full buffer
// drops delivery, never the row.
type Delivery struct {
	providers []Provider
	ch        chan *Notification
	workers   int

	started bool
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// DeliveryConfig holds worker pool settings.
type DeliveryConfig struct {
	Workers    int
	BufferSize int
}

// DefaultDeliveryConfig returns production defaults.
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{Workers: 4, BufferSize: 1000}
}

// NewDelivery creates a delivery pool over the given providers.
func NewDelivery(cfg DeliveryConfig, providers ...Provider) *Delivery {
	return &Delivery{
		providers: providers,
		ch:        make(chan *Notification, cfg.BufferSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the workers.
func (d *Delivery) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("delivery already started")
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return nil
}

// Stop drains the workers.
func (d *Delivery) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
}

// Enqueue submits a persisted notification for external delivery.
func (d *Delivery) Enqueue(n *Notification) {
	select {
	case d.ch <- n:
	default:
		log.Printf("notification delivery buffer full, dropping delivery for %s", n.ID)
	}
}

func (d *Delivery) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case n := <-d.ch:
			for _, p := range d.providers {
				if err := p.Send(ctx, n); err != nil {
					log.Printf("notification delivery failed for %s: %v", n.ID, err)
				}
			}
		}
	}
}

// ConsoleProvider logs notifications, used in development.
type ConsoleProvider struct{}

// NewConsoleProvider creates a console logging provider.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// Send logs the notification.
func (p *ConsoleProvider) Send(_ context.Context, n *Notification) error {
	log.Printf("[NOTIFY] to=%s type=%s payload=%+v", n.RecipientUserID, n.Type, n.Payload)
	return nil
}
