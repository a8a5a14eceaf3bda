package cron

import (
	"sync/atomic"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	cron_config "github.com/customeros/inboxsync/internal/cron/config"
	"github.com/customeros/inboxsync/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type fakeScheduler struct {
	triggered atomic.Int32
	degraded  []interfaces.AccountStatus
}

func (f *fakeScheduler) TriggerAll() int {
	f.triggered.Add(1)
	return 2
}

func (f *fakeScheduler) Status() map[string]interfaces.AccountStatus {
	return map[string]interfaces.AccountStatus{
		"a": {AccountID: "a", State: "watching"},
		"b": {AccountID: "b", State: "reconnecting"},
	}
}

func (f *fakeScheduler) Degraded() []interfaces.AccountStatus { return f.degraded }

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		Logger: &logger.Config{LogLevel: "info"},
		CronConfig: &cron_config.Config{
			CronScheduleHeartbeat:     "0 * * * * *",
			CronScheduleSafetyNetSync: "0 */5 * * * *",
			CronScheduleDegradedSweep: "30 */10 * * * *",
		},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, &fakeScheduler{})

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, &fakeScheduler{})

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	assert.Len(t, cm.jobIDs, 3)
	assert.Len(t, c.Entries(), 3)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "safety_net_sync")
	assert.Contains(t, cm.jobIDs, "degraded_sweep")
}

func TestCronManager_EmptyScheduleDisablesJob(t *testing.T) {
	cfg := testConfig()
	cfg.CronConfig.CronScheduleDegradedSweep = ""
	cm := NewCronManager(cfg, getLogger(), nil, &fakeScheduler{})

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	assert.Len(t, cm.jobIDs, 2)
	assert.NotContains(t, cm.jobIDs, "degraded_sweep")
}

func TestCronManager_SafetyNetSyncTriggersAll(t *testing.T) {
	scheduler := &fakeScheduler{}
	cm := NewCronManager(testConfig(), getLogger(), nil, scheduler)

	cm.safetyNetSync()
	cm.safetyNetSync()

	assert.Equal(t, int32(2), scheduler.triggered.Load())
}

func TestCronManager_JobsTolerateMissingScheduler(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, nil)

	assert.NotPanics(t, func() {
		cm.safetyNetSync()
		cm.degradedSweep()
		cm.heartbeat("local")
	})
}

func TestCronManager_DegradedSweep(t *testing.T) {
	scheduler := &fakeScheduler{degraded: []interfaces.AccountStatus{
		{AccountID: "a", Email: "a@acme.com", State: "reconnecting", LastError: "auth"},
	}}
	cm := NewCronManager(testConfig(), getLogger(), nil, scheduler)

	assert.NotPanics(t, cm.degradedSweep)
}

func TestCronManager_StartLocalAndStop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, &fakeScheduler{})

	require.NoError(t, cm.Start("pod-1", "default"))
	require.NotNil(t, cm.cron)
	cm.StartCron()
	assert.Len(t, cm.jobIDs, 3, "starting twice does not register jobs twice")

	cm.Stop()
	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
	assert.Nil(t, cm.cron)
}
