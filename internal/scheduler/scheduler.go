package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lookout-dev/lookout/db"
	"github.com/lookout-dev/lookout/internal/models"
	"github.com/lookout-dev/lookout/internal/runner"
)

type Scheduler struct {
	runner   *runner.Runner
	monitors map[uint]*MonitorJob // monitor ID -> job
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

type MonitorJob struct {
	monitor models.Monitor
	ticker  *time.Ticker
	cancel  context.CancelFunc
}

// NewScheduler initializes a Scheduler that drives the given runner.
func NewScheduler(r *runner.Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:   r,
		monitors: make(map[uint]*MonitorJob),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start loads all unpaused monitors and begins scheduling.
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	var monitorsList []models.Monitor

	if err := db.DB.Where("paused = ?", false).Find(&monitorsList).Error; err != nil {
		return err
	}

	for _, monitor := range monitorsList {
		s.AddMonitor(monitor)
	}

	log.Printf("Scheduler started with %d monitors", len(monitorsList))
	return nil
}

// Stop gracefully shuts down all monitor jobs.
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.monitors {
		job.ticker.Stop()
		job.cancel()
	}

	s.monitors = make(map[uint]*MonitorJob)
	log.Println("Scheduler stopped")
}

// AddMonitor starts probe ticks for a monitor, one per configured region.
func (s *Scheduler) AddMonitor(monitor models.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingJob, exists := s.monitors[monitor.ID]; exists {
		existingJob.ticker.Stop()
		existingJob.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	ticker := time.NewTicker(time.Duration(monitor.Interval) * time.Second)

	job := &MonitorJob{
		monitor: monitor,
		ticker:  ticker,
		cancel:  jobCancel,
	}

	s.monitors[monitor.ID] = job

	go func() {
		// Immediate first tick with a copy of monitor data
		s.executeTick(jobCtx, monitor)
		s.runMonitor(jobCtx, job)
	}()

	log.Printf("Added monitor %d (%s) with immediate check", monitor.ID, monitor.Name)
}

// RemoveMonitor stops probe ticks for a monitor.
func (s *Scheduler) RemoveMonitor(monitorID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.monitors[monitorID]; exists {
		job.ticker.Stop()
		job.cancel()
		delete(s.monitors, monitorID)
		log.Printf("Removed monitor %d", monitorID)
	}
}

// UpdateMonitor replaces an existing monitor's job with fresh configuration.
func (s *Scheduler) UpdateMonitor(monitor models.Monitor) {
	s.AddMonitor(monitor) // AddMonitor handles stopping existing job
}

func (s *Scheduler) runMonitor(ctx context.Context, job *MonitorJob) {
	defer job.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.ticker.C:
			s.mu.RLock()
			monitorCopy := job.monitor
			s.mu.RUnlock()

			s.executeTick(ctx, monitorCopy)
		}
	}
}

// executeTick fans one tick out to every region the monitor probes from. Each
// region reports independently; a failed tick in one region never blocks the
// others.
func (s *Scheduler) executeTick(ctx context.Context, monitor models.Monitor) {
	tickTime := time.Now().UTC()

	var wg sync.WaitGroup

	for _, region := range monitor.Regions {
		wg.Add(1)

		go func(region string) {
			defer wg.Done()

			if err := s.runner.RunTick(ctx, monitor, region, tickTime); err != nil {
				log.Printf("Tick failed for monitor %d region %s: %v", monitor.ID, region, err)
			}
		}(region)
	}

	wg.Wait()
}

// GetStatus returns current scheduler status.
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"active_monitors": len(s.monitors),
		"running":         s.ctx.Err() == nil,
	}
}

// Global scheduler instance
var globalScheduler *Scheduler

// Initialize creates and starts the global scheduler.
func Initialize(r *runner.Runner) error {
	globalScheduler = NewScheduler(r)
	return globalScheduler.Start()
}

// Shutdown stops the global scheduler.
func Shutdown() {
	if globalScheduler != nil {
		globalScheduler.Stop()
	}
}

// AddMonitor adds a monitor to the global scheduler.
func AddMonitor(monitor models.Monitor) {
	if globalScheduler != nil {
		globalScheduler.AddMonitor(monitor)
	}
}

// RemoveMonitor removes a monitor from the global scheduler.
func RemoveMonitor(monitorID uint) {
	if globalScheduler != nil {
		globalScheduler.RemoveMonitor(monitorID)
	}
}

// UpdateMonitor updates a monitor in the global scheduler.
func UpdateMonitor(monitor models.Monitor) {
	if globalScheduler != nil {
		globalScheduler.UpdateMonitor(monitor)
	}
}
