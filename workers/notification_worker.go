package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"herway/models"
	"herway/utils"
)

var (
	ErrWorkerNotRunning = errors.New("notification worker is not running")
	ErrQueueFull        = errors.New("notification queue is full")
)

// Deliverer sends one guardian alert over every channel the guardian has
// enabled.
type Deliverer interface {
	Deliver(ctx context.Context, alert *models.GuardianAlert) error
}

// NotificationWorker drains the guardian alert queue on a fixed pool of
// goroutines, retrying failed deliveries with a linear backoff.
type NotificationWorker struct {
	deliverer Deliverer

	// Worker configuration
	config NotificationWorkerConfig

	// Processing channels
	queue chan *models.GuardianAlert

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	stats      NotificationWorkerStats
	statsMutex sync.RWMutex
}

type NotificationWorkerConfig struct {
	WorkerCount       int           `json:"workerCount"`
	QueueSize         int           `json:"queueSize"`
	ProcessingTimeout time.Duration `json:"processingTimeout"`
	RetryAttempts     int           `json:"retryAttempts"`
	RetryDelay        time.Duration `json:"retryDelay"`
}

type NotificationWorkerStats struct {
	AlertsDelivered    int64     `json:"alertsDelivered"`
	AlertsFailed       int64     `json:"alertsFailed"`
	AlertsRetried      int64     `json:"alertsRetried"`
	AverageProcessTime float64   `json:"averageProcessTime"` // ms
	LastProcessedAt    time.Time `json:"lastProcessedAt"`
	QueueLength        int       `json:"queueLength"`
	StartTime          time.Time `json:"startTime"`
}

func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		WorkerCount:       3,
		QueueSize:         500,
		ProcessingTimeout: 30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        2 * time.Second,
	}
}

func NewNotificationWorker(deliverer Deliverer, config NotificationWorkerConfig) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = defaults.ProcessingTimeout
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &NotificationWorker{
		deliverer: deliverer,
		config:    config,
		queue:     make(chan *models.GuardianAlert, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		stats: NotificationWorkerStats{
			StartTime: time.Now(),
		},
	}
}

func (nw *NotificationWorker) Start() error {
	nw.mutex.Lock()
	defer nw.mutex.Unlock()

	if nw.isRunning {
		return nil
	}
	if nw.ctx.Err() != nil {
		return ErrWorkerNotRunning
	}

	nw.isRunning = true

	logrus.Infof("Starting Notification Worker with %d workers", nw.config.WorkerCount)

	for i := 0; i < nw.config.WorkerCount; i++ {
		nw.wg.Add(1)
		go nw.worker(i)
	}

	logrus.Info("Notification Worker started successfully")
	return nil
}

func (nw *NotificationWorker) Stop() error {
	nw.mutex.Lock()
	if !nw.isRunning {
		nw.mutex.Unlock()
		return nil
	}
	nw.isRunning = false
	nw.mutex.Unlock()

	logrus.Info("Stopping Notification Worker...")

	// The queue stays open so pending retries never send on a closed channel.
	nw.cancel()
	nw.wg.Wait()

	if pending := len(nw.queue); pending > 0 {
		logrus.Warnf("Notification Worker stopped with %d undelivered alerts", pending)
	}
	logrus.Info("Notification Worker stopped successfully")
	return nil
}

// Enqueue queues an alert for delivery without blocking the caller.
func (nw *NotificationWorker) Enqueue(alert *models.GuardianAlert) error {
	nw.mutex.RLock()
	running := nw.isRunning
	nw.mutex.RUnlock()
	if !running {
		return ErrWorkerNotRunning
	}

	if alert.ID == "" {
		alert.ID = utils.GenerateUUID()
	}
	if alert.EnqueuedAt.IsZero() {
		alert.EnqueuedAt = time.Now()
	}

	select {
	case nw.queue <- alert:
		return nil
	default:
		return ErrQueueFull
	}
}

func (nw *NotificationWorker) worker(workerID int) {
	defer nw.wg.Done()

	logrus.Debugf("Notification worker %d started", workerID)

	for {
		select {
		case alert := <-nw.queue:
			nw.process(alert, workerID)

		case <-nw.ctx.Done():
			logrus.Debugf("Notification worker %d stopping", workerID)
			return
		}
	}
}

func (nw *NotificationWorker) process(alert *models.GuardianAlert, workerID int) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(nw.ctx, nw.config.ProcessingTimeout)
	defer cancel()

	alert.Attempts++
	logger := logrus.WithFields(logrus.Fields{
		"worker":   workerID,
		"alert":    alert.ID,
		"user":     alert.UserID,
		"guardian": alert.Guardian.Name,
		"event":    alert.EventType,
		"attempt":  alert.Attempts,
	})

	if err := nw.deliverer.Deliver(ctx, alert); err != nil {
		logger.Warnf("Guardian alert delivery failed: %v", err)
		nw.retry(alert)
		return
	}

	nw.recordDelivered(time.Since(startTime))
	logger.Debug("Guardian alert delivered")
}

func (nw *NotificationWorker) retry(alert *models.GuardianAlert) {
	if alert.Attempts > nw.config.RetryAttempts {
		logrus.Errorf("Guardian alert %s failed after %d attempts", alert.ID, alert.Attempts)
		nw.incrementFailed()
		return
	}

	nw.incrementRetried()

	delay := time.Duration(alert.Attempts) * nw.config.RetryDelay

	nw.wg.Add(1)
	go func() {
		defer nw.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-nw.ctx.Done():
			logrus.Warnf("Dropping retry of guardian alert %s on shutdown", alert.ID)
			nw.incrementFailed()
			return
		}

		select {
		case nw.queue <- alert:
		default:
			logrus.Errorf("Failed to requeue guardian alert %s", alert.ID)
			nw.incrementFailed()
		}
	}()
}

func (nw *NotificationWorker) recordDelivered(duration time.Duration) {
	nw.statsMutex.Lock()
	defer nw.statsMutex.Unlock()

	nw.stats.AlertsDelivered++
	if nw.stats.AlertsDelivered == 1 {
		nw.stats.AverageProcessTime = float64(duration.Milliseconds())
	} else {
		nw.stats.AverageProcessTime = (nw.stats.AverageProcessTime + float64(duration.Milliseconds())) / 2
	}
	nw.stats.LastProcessedAt = time.Now()
}

func (nw *NotificationWorker) incrementRetried() {
	nw.statsMutex.Lock()
	nw.stats.AlertsRetried++
	nw.statsMutex.Unlock()
}

func (nw *NotificationWorker) incrementFailed() {
	nw.statsMutex.Lock()
	nw.stats.AlertsFailed++
	nw.statsMutex.Unlock()
}

func (nw *NotificationWorker) GetStats() NotificationWorkerStats {
	nw.statsMutex.RLock()
	defer nw.statsMutex.RUnlock()

	stats := nw.stats
	stats.QueueLength = len(nw.queue)
	return stats
}
