package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	cron_config "github.com/customeros/inboxsync/internal/cron/config"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

const (
	// GroupSync serializes jobs that poke the orchestrator
	GroupSync = "sync"

	LeaseName = "inboxsync-cron-leader"
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupSync: new(sync.Mutex),
	},
}

// SyncScheduler is the part of the orchestrator the scheduled jobs drive.
type SyncScheduler interface {
	TriggerAll() int
	Status() map[string]interfaces.AccountStatus
	Degraded() []interfaces.AccountStatus
}

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	scheduler SyncScheduler

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	jobIDs   map[string]cronv3.EntryID
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, scheduler SyncScheduler) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		scheduler: scheduler,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
	}
}

// NewKubernetesClient returns nil outside a cluster, which puts the manager in local mode.
func NewKubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in kubernetes, cron leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}

// Start runs the jobs on the elected leader only. Without a k8s client, or
// with LOCAL_DEV=true, it schedules them right away.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      LeaseName,
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cm.mu.Lock()
	cm.cancel = cancel
	cm.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.stopCron()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop waits for running jobs and releases the lease. Safe to call twice.
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		cm.stopCron()
		cm.mu.Lock()
		if cm.cancel != nil {
			cm.cancel()
		}
		cm.mu.Unlock()
		close(cm.stopCh)
	})
}

func (cm *CronManager) stopCron() {
	cm.mu.Lock()
	c := cm.cron
	cm.cron = nil
	cm.mu.Unlock()

	if c != nil {
		cm.log.Info("Stopping cron manager")
		// Wait for jobs to finish
		<-c.Stop().Done()
	}
}

func (cm *CronManager) cronConfig() cron_config.Config {
	if cm.cfg != nil && cm.cfg.CronConfig != nil {
		return *cm.cfg.CronConfig
	}
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}
	return cronConfig
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	cronConfig := cm.cronConfig()

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		cm.addJob(c, "heartbeat", cronConfig.CronScheduleHeartbeat, func() {
			cm.heartbeat(podName)
		})
	}

	if cronConfig.CronScheduleSafetyNetSync != "" {
		cm.addJob(c, "safety_net_sync", cronConfig.CronScheduleSafetyNetSync, func() {
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.safetyNetSync()
		})
	}

	if cronConfig.CronScheduleDegradedSweep != "" {
		cm.addJob(c, "degraded_sweep", cronConfig.CronScheduleDegradedSweep, func() {
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.degradedSweep()
		})
	}
}

func (cm *CronManager) addJob(c *cronv3.Cron, name, schedule string, job func()) {
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		job()
	})
	if err != nil {
		cm.log.Fatalf("Could not add %s cron job: %v", name, err)
	}
	cm.jobIDs[name] = id
	cm.log.Infof("Registered %s job with schedule: %s", name, schedule)
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cron != nil {
		return
	}

	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) heartbeat(podName string) {
	if cm.scheduler == nil {
		cm.log.Infof("Cron heartbeat from pod: %s", podName)
		return
	}
	counts := map[string]int{}
	for _, status := range cm.scheduler.Status() {
		counts[status.State]++
	}
	cm.log.Infof("Cron heartbeat from pod: %s, accounts by state: %v", podName, counts)
}

// safetyNetSync rescans every account in case an IDLE notification was missed.
func (cm *CronManager) safetyNetSync() {
	if cm.scheduler == nil {
		return
	}
	span, _ := tracing.StartTracerSpan(context.Background(), "CronManager.safetyNetSync")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	triggered := cm.scheduler.TriggerAll()
	span.LogKV("accounts", triggered)
	cm.log.Debugf("Safety-net sync triggered for %d accounts", triggered)
}

func (cm *CronManager) degradedSweep() {
	if cm.scheduler == nil {
		return
	}
	span, _ := tracing.StartTracerSpan(context.Background(), "CronManager.degradedSweep")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	degraded := cm.scheduler.Degraded()
	span.LogKV("degraded", len(degraded))
	for _, status := range degraded {
		cm.log.Errorf("[%s] Account still degraded (state %s): %s", status.Email, status.State, status.LastError)
	}
}
