package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/metrics"
)

// ErrQueueFull — очередь доставки переполнена, событие отброшено.
var ErrQueueFull = errors.New("очередь уведомлений переполнена")

// ErrClosed — диспетчер уже остановлен.
var ErrClosed = errors.New("диспетчер уведомлений остановлен")

// Dispatcher доставляет события асинхронно: Notify только кладёт событие в очередь,
// доставку в next делает фоновая горутина. Так медленный внешний канал
// не задерживает запрос пользователя.
type Dispatcher struct {
	next    Notifier
	queue   chan Event
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер с очередью размера size.
func NewDispatcher(next Notifier, size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		next:    next,
		queue:   make(chan Event, size),
		timeout: 10 * time.Second,
	}
}

// Start запускает фоновую доставку.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.loop()
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.next.Notify(ctx, ev)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"event_id": ev.ID,
				"user_id":  ev.UserID,
				"kind":     ev.Kind,
			}).WithError(err).Warn("Не удалось доставить уведомление")
		}
	}
}

// Notify ставит событие в очередь. Не блокируется.
func (d *Dispatcher) Notify(_ context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		metrics.Notifications.WithLabelValues("queue", "dropped").Inc()
		return ErrQueueFull
	}
}

// Close перестаёт принимать события и ждёт доставки уже поставленных.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	log.Info("Диспетчер уведомлений остановлен")
}
