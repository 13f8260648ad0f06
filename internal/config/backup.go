package config

// BackupConfig holds backup and retention settings.
//
// Dir defaults to ~/.scholar/backups when empty (resolved by the backup
// service, not here, so tests can point at a temp dir).
type BackupConfig struct {
	// Dir is the directory where backup archives and their metadata sidecars live.
	Dir string `mapstructure:"dir" json:"dir"`

	// Compress enables gzip compression of backup archives.
	Compress bool `mapstructure:"compress" json:"compress"`

	// RetentionDays is the age threshold for cleanup. Backups older than this
	// are eligible for removal. 0 disables the age check.
	RetentionDays int `mapstructure:"retention_days" json:"retention_days"`

	// RetentionCount is the per-instance count cap. When an instance has more
	// backups than this, the oldest are removed. 0 disables the count cap.
	RetentionCount int `mapstructure:"retention_count" json:"retention_count"`

	// IntervalHours is the automated backup scheduler interval.
	// 0 disables the scheduler.
	IntervalHours int `mapstructure:"interval_hours" json:"interval_hours"`
}
