package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultActionTimeout bounds a single direct action
	DefaultActionTimeout = 60 * time.Second
	// DefaultPlanTimeout bounds a whole plan, elevation prompts included
	DefaultPlanTimeout = 10 * time.Minute
	// DefaultLayerTimeout bounds one automation layer attempt
	DefaultLayerTimeout = 5 * time.Second
	// DefaultPollInterval is the window discovery polling period
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultAuditWriteTimeout bounds a single audit append
	DefaultAuditWriteTimeout = 5 * time.Second
)

// Limit constants
const (
	// DefaultMaxActions is the longest plan accepted by the validator
	DefaultMaxActions = 50
	// DefaultImageConfidence is the minimum template match score
	DefaultImageConfidence = 0.9
	// DefaultControlTreeDepth limits control tree walks
	DefaultControlTreeDepth = 12
	// DefaultListLimit caps list_files and find_file output
	DefaultListLimit = 200
	// DefaultTopProcesses is the default get_top_processes_by_memory size
	DefaultTopProcesses = 5
)

// Audit constants
const (
	// DefaultAuditLimit is the default number of audit records to display
	DefaultAuditLimit = 20
	// MaxAuditAnalysisRecords caps records read for statistics
	MaxAuditAnalysisRecords = 10000
)

// Admin status messages
const (
	AdminMessageElevated = "Running with Administrator privileges"
	AdminMessageStandard = "Running without Administrator privileges"
	AdminRecommendation  = "Please run as Administrator for full functionality"
)
