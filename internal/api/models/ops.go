package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Providers []ProviderStatus `json:"providers"`
	Monitor   *MonitorStatus   `json:"monitor,omitempty"`
	LastRun   *RunSummary      `json:"lastRun,omitempty"`
}

// ProviderStatus represents the circuit health of an upstream API.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// MonitorStatus describes the scheduler.
type MonitorStatus struct {
	Running bool       `json:"running"`
	NextRun *Timestamp `json:"nextRun,omitempty"`
}
