package config

import "time"

// Application constants shared across the converter executables.
const (
	// Application Info
	AppName    = "TSS Converter"
	AppVersion = "1.2.0"

	// Environment namespace for all TSS_* variables
	EnvPrefix = "TSS"

	// Config file name probed in the working directory
	DefaultConfigFile = "config.yaml"

	// File Naming
	// Intermediate outputs append " - Step<n>" to the input base name;
	// the final stage prepends the standard prefix instead.
	StepOutputSuffix  = " - Step"
	FinalOutputPrefix = "Standard Internal TSS - "
	ExcelExtension    = ".xlsx"
	ExcelTempPrefix   = "~$"

	// Input Limits
	MaxInputFileSize = 100 * 1024 * 1024 // 100MB

	// Network Timeouts
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultOperationTimeout = 30 * time.Minute
	WebSocketPingPeriod     = 30 * time.Second
	WebSocketPongWait       = 60 * time.Second

	// API Endpoints
	APIBasePath     = "/api"
	ConvertEndpoint = "/api/convert"
	RunsEndpoint    = "/api/runs"
	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"

	// WebSocket Endpoints
	WebSocketEndpoint = "/ws"
)
