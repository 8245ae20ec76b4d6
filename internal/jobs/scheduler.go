// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание ночных обходов: выдача ежедневных заданий,
// сброс серий и увядание растений. Каждую задачу можно запустить и вручную.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
	"serotonyl.ru/wellness-engine/internal/features/plant"
	"serotonyl.ru/wellness-engine/internal/features/streak"
	"serotonyl.ru/wellness-engine/internal/features/tasks"
	"serotonyl.ru/wellness-engine/internal/metrics"
)

// Имена задач
const (
	JobTasks   = "tasks"   // Выдача ежедневных заданий
	JobStreaks = "streaks" // Сброс прерванных серий
	JobDecay   = "decay"   // Увядание заброшенных растений
)

// ErrUnknownJob — задачи с таким именем нет.
var ErrUnknownJob = fmt.Errorf("фоновая задача: %w", common.ErrNotFound)

// Job — фоновая задача по расписанию.
type Job struct {
	Name string
	Spec string // Cron-выражение (5 полей)
	Run  func(ctx context.Context) (common.SweepResult, error)
}

// Specs — расписания стандартных задач.
type Specs struct {
	TaskAssignment string
	StreakReset    string
	PlantDecay     string
}

// Standard собирает три стандартные задачи движка.
func Standard(specs Specs, taskSvc *tasks.Service, streakSvc *streak.Service, plantSvc *plant.Service) []Job {
	return []Job{
		{Name: JobTasks, Spec: specs.TaskAssignment, Run: taskSvc.AssignSweep},
		{Name: JobStreaks, Spec: specs.StreakReset, Run: streakSvc.ResetSweep},
		{Name: JobDecay, Spec: specs.PlantDecay, Run: plantSvc.DecaySweep},
	}
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	jobs map[string]Job

	// Ручной и плановый запуск одной задачи не пересекаются
	locks map[string]*sync.Mutex
}

// NewScheduler создаёт планировщик в часовом поясе приложения.
func NewScheduler(loc *time.Location, jobs ...Job) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := cron.PrintfLogger(log.StandardLogger())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		loc:   loc,
		jobs:  make(map[string]Job, len(jobs)),
		locks: make(map[string]*sync.Mutex, len(jobs)),
	}
	for _, j := range jobs {
		s.jobs[j.Name] = j
		s.locks[j.Name] = &sync.Mutex{}
	}
	return s
}

// Names возвращает имена задач по алфавиту.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start регистрирует задачи в cron и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, name := range s.Names() {
		job := s.jobs[name]
		if _, err := s.cron.AddFunc(job.Spec, func() {
			if _, err := s.RunJob(ctx, name); err != nil {
				log.WithError(err).WithField("job", name).Error("[CRON] Ошибка задачи")
			}
		}); err != nil {
			return fmt.Errorf("некорректное расписание задачи %s (%q): %w", name, job.Spec, err)
		}
		log.WithFields(log.Fields{
			"job":  name,
			"spec": job.Spec,
		}).Debug("Задача добавлена в расписание")
	}

	s.cron.Start()
	log.WithField("timezone", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения выполняющихся задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// RunJob выполняет задачу немедленно.
func (s *Scheduler) RunJob(ctx context.Context, name string) (common.SweepResult, error) {
	job, ok := s.jobs[name]
	if !ok {
		return common.SweepResult{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	lock := s.locks[name]
	lock.Lock()
	defer lock.Unlock()

	log.WithField("job", name).Info("[CRON] Запуск задачи")
	started := time.Now()

	result, err := job.Run(ctx)
	metrics.SweepDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	if err != nil {
		return result, err
	}

	log.WithFields(log.Fields{
		"job":      name,
		"matched":  result.Matched,
		"updated":  result.Updated,
		"failed":   result.Failed,
		"duration": time.Since(started).Round(time.Millisecond).String(),
	}).Info("[CRON] Задача завершена")
	return result, nil
}

// NextRun возвращает ближайшее время запуска задачи после after.
func (s *Scheduler) NextRun(name string, after time.Time) (time.Time, error) {
	job, ok := s.jobs[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	sched, err := cron.ParseStandard(job.Spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after.In(s.loc)), nil
}
