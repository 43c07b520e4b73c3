package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper drops in-memory safety dashboards that have gone idle.
type Reaper interface {
	ReapIdle(ctx context.Context, ttl time.Duration) int
}

// CheckInPruner deletes check-in log entries older than the cutoff.
type CheckInPruner interface {
	DeleteCheckInsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CleanupWorker struct {
	reaper  Reaper
	checkIn CheckInPruner

	// Worker configuration
	config CleanupWorkerConfig

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Cleanup tasks
	tasks []CleanupTask

	// Metrics
	stats      CleanupWorkerStats
	statsMutex sync.RWMutex
}

type CleanupWorkerConfig struct {
	// Retention periods
	DashboardIdleTTL     time.Duration `json:"dashboardIdleTtl"`
	CheckInRetentionDays int           `json:"checkInRetentionDays"`

	// Cleanup intervals
	DashboardReapInterval  time.Duration `json:"dashboardReapInterval"`
	CheckInCleanupInterval time.Duration `json:"checkInCleanupInterval"`
	SchedulerInterval      time.Duration `json:"schedulerInterval"`
}

type CleanupTask struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Interval    time.Duration `json:"interval"`
	LastRun     time.Time     `json:"lastRun"`
	NextRun     time.Time     `json:"nextRun"`
	Enabled     bool          `json:"enabled"`
	Function    func(ctx context.Context) error
}

type CleanupWorkerStats struct {
	TasksExecuted      int64            `json:"tasksExecuted"`
	TasksFailed        int64            `json:"tasksFailed"`
	DashboardsReaped   int64            `json:"dashboardsReaped"`
	CheckInsDeleted    int64            `json:"checkInsDeleted"`
	LastCleanupAt      time.Time        `json:"lastCleanupAt"`
	TaskExecutionTimes map[string]int64 `json:"taskExecutionTimes"` // ms
	StartTime          time.Time        `json:"startTime"`
}

func DefaultCleanupWorkerConfig() CleanupWorkerConfig {
	return CleanupWorkerConfig{
		DashboardIdleTTL:       2 * time.Hour,
		CheckInRetentionDays:   90,
		DashboardReapInterval:  5 * time.Minute,
		CheckInCleanupInterval: 24 * time.Hour,
		SchedulerInterval:      1 * time.Minute,
	}
}

func NewCleanupWorker(reaper Reaper, checkIn CheckInPruner, config CleanupWorkerConfig) *CleanupWorker {
	if config.SchedulerInterval <= 0 {
		config.SchedulerInterval = DefaultCleanupWorkerConfig().SchedulerInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	worker := &CleanupWorker{
		reaper:  reaper,
		checkIn: checkIn,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		stats: CleanupWorkerStats{
			StartTime:          time.Now(),
			TaskExecutionTimes: make(map[string]int64),
		},
	}

	worker.initializeTasks()

	return worker
}

func (cw *CleanupWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}

	cw.isRunning = true

	logrus.Info("Starting Cleanup Worker...")

	cw.wg.Add(1)
	go cw.taskScheduler()

	logrus.Infof("Cleanup Worker started with %d tasks", len(cw.tasks))
	return nil
}

func (cw *CleanupWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Cleanup Worker...")

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Cleanup Worker stopped successfully")
	return nil
}

func (cw *CleanupWorker) initializeTasks() {
	cw.tasks = []CleanupTask{
		{
			Name:        "dashboard_reap",
			Description: "Drop idle safety dashboards",
			Interval:    cw.config.DashboardReapInterval,
			Enabled:     cw.reaper != nil && cw.config.DashboardIdleTTL > 0 && cw.config.DashboardReapInterval > 0,
			Function:    cw.reapDashboards,
		},
		{
			Name:        "checkin_log_cleanup",
			Description: "Delete expired check-in log entries",
			Interval:    cw.config.CheckInCleanupInterval,
			Enabled:     cw.checkIn != nil && cw.config.CheckInRetentionDays > 0 && cw.config.CheckInCleanupInterval > 0,
			Function:    cw.cleanupCheckIns,
		},
	}

	now := time.Now()
	for i := range cw.tasks {
		cw.tasks[i].NextRun = now.Add(cw.tasks[i].Interval)
	}
}

func (cw *CleanupWorker) taskScheduler() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cw.executeScheduledTasks(time.Now())

		case <-cw.ctx.Done():
			return
		}
	}
}

func (cw *CleanupWorker) executeScheduledTasks(now time.Time) {
	for i := range cw.tasks {
		task := &cw.tasks[i]

		if !task.Enabled || now.Before(task.NextRun) {
			continue
		}

		logrus.Debugf("Executing cleanup task: %s", task.Name)

		startTime := time.Now()
		err := task.Function(cw.ctx)
		executionTime := time.Since(startTime)

		cw.statsMutex.Lock()
		cw.stats.TaskExecutionTimes[task.Name] = executionTime.Milliseconds()
		if err != nil {
			cw.stats.TasksFailed++
			logrus.Errorf("Cleanup task %s failed: %v", task.Name, err)
		} else {
			cw.stats.TasksExecuted++
			logrus.Debugf("Cleanup task %s completed in %v", task.Name, executionTime)
		}
		cw.statsMutex.Unlock()

		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
	}
}

func (cw *CleanupWorker) reapDashboards(ctx context.Context) error {
	reaped := cw.reaper.ReapIdle(ctx, cw.config.DashboardIdleTTL)

	cw.statsMutex.Lock()
	cw.stats.DashboardsReaped += int64(reaped)
	cw.stats.LastCleanupAt = time.Now()
	cw.statsMutex.Unlock()

	if reaped > 0 {
		logrus.Infof("Reaped %d idle safety dashboards", reaped)
	}
	return nil
}

func (cw *CleanupWorker) cleanupCheckIns(ctx context.Context) error {
	cutoffTime := time.Now().AddDate(0, 0, -cw.config.CheckInRetentionDays)

	deletedCount, err := cw.checkIn.DeleteCheckInsBefore(ctx, cutoffTime)
	if err != nil {
		return err
	}

	cw.statsMutex.Lock()
	cw.stats.CheckInsDeleted += deletedCount
	cw.stats.LastCleanupAt = time.Now()
	cw.statsMutex.Unlock()

	logrus.Infof("Cleaned up %d old check-in log entries", deletedCount)
	return nil
}

func (cw *CleanupWorker) GetStats() CleanupWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()

	stats := cw.stats
	stats.TaskExecutionTimes = make(map[string]int64, len(cw.stats.TaskExecutionTimes))
	for name, ms := range cw.stats.TaskExecutionTimes {
		stats.TaskExecutionTimes[name] = ms
	}
	return stats
}
