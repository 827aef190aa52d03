package config

// ApplyDefaults sets the baseline configuration. YAML and environment
// overrides are applied on top of these values.
func ApplyDefaults(cfg *Config) {
	// --- Log ---
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	// --- Server ---
	cfg.Server.Enabled = true
	cfg.Server.ListenAddress = ":8080"

	// --- Detection ---
	// Background checks every 4h; at most one pass every 4h with a burst of 6,
	// matching a six-passes-per-day platform quota.
	cfg.Detection.IntervalSeconds = 4 * 3600
	cfg.Detection.MinIntervalSeconds = 4 * 3600
	cfg.Detection.Burst = 6

	// --- Subscriptions ---
	cfg.Subscription.EventBuffer = 16

	// --- Analytics ---
	cfg.Analytics.Enabled = true
	cfg.Analytics.Consent = false
	cfg.Analytics.LogEvents = false

	// --- NATS ---
	cfg.NATS.ClusterID = "exposure-cluster"
	cfg.NATS.Subject = "exposure.detections"
	cfg.NATS.Durable = "exposure-sync"
}
