package commands

// Error messages
const (
	ErrAuditStoreUnavailable    = "audit store unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrLimitInvalid             = "--limit must be >= 1"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoAuditRecorded          = "No actions audited yet."
)
