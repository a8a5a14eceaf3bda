package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Safety-net rescan of every account, every 5 minutes
	CronScheduleSafetyNetSync string `env:"CRON_SCHEDULE_SAFETY_NET_SYNC" envDefault:"0 */5 * * * *"`
	// Degraded account sweep, every 10 minutes
	CronScheduleDegradedSweep string `env:"CRON_SCHEDULE_DEGRADED_SWEEP" envDefault:"30 */10 * * * *"`
}
