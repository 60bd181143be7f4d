package domain

// Config mirrors ~/.deskgate/config.yaml.
type Config struct {
	ConfigFormatVersion string                `yaml:"config_format_version"`
	Allowlist           AllowlistSettings     `yaml:"allowlist"`
	Policy              PolicySettings        `yaml:"policy"`
	Execution           ExecutionSettings     `yaml:"execution"`
	Elevation           ElevationSettings     `yaml:"elevation"`
	Automation          AutomationSettings    `yaml:"automation"`
	Audit               AuditSettings         `yaml:"audit"`
	Observability       ObservabilitySettings `yaml:"observability"`
}

// AllowlistSettings bounds the resources actions may touch.
type AllowlistSettings struct {
	Roots           []string `yaml:"roots"`
	Apps            []string `yaml:"apps"`
	CaseInsensitive string   `yaml:"case_insensitive"`
}

// DenyRule is an operator supplied CEL expression; a true result denies the action.
type DenyRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Message    string `yaml:"message,omitempty"`
}

// PolicySettings controls approval and plan limits.
type PolicySettings struct {
	AutoApproveLowRisk bool       `yaml:"auto_approve_low_risk"`
	MaxActions         int        `yaml:"max_actions"`
	DenyRules          []DenyRule `yaml:"deny_rules,omitempty"`
}

// ExecutionSettings controls how actions run.
type ExecutionSettings struct {
	Shell         string `yaml:"shell"`
	ActionTimeout string `yaml:"action_timeout"`
	PlanTimeout   string `yaml:"plan_timeout"`
}

// ElevationSettings configures the privilege elevator.
type ElevationSettings struct {
	Launcher  string `yaml:"launcher"`
	RulesFile string `yaml:"rules_file"`
}

// SystemContainers lists shell surfaces that must never be chosen as a target window.
type SystemContainers struct {
	Classes   []string `yaml:"classes"`
	Processes []string `yaml:"processes"`
	Titles    []string `yaml:"titles"`
}

// AutomationSettings configures the layered GUI resolver.
type AutomationSettings struct {
	LayerTimeout     string              `yaml:"layer_timeout"`
	PollInterval     string              `yaml:"poll_interval"`
	ImageConfidence  float64             `yaml:"image_confidence"`
	OCRCommand       string              `yaml:"ocr_command"`
	ControlTreeDepth int                 `yaml:"control_tree_depth"`
	SystemContainers SystemContainers    `yaml:"system_containers"`
	KnownOwners      map[string][]string `yaml:"known_owners"`
}

// AuditSettings selects the audit backend.
type AuditSettings struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ObservabilitySettings configures OpenTelemetry export.
type ObservabilitySettings struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

// PolicyConfig is the subset of configuration the validator reads.
type PolicyConfig struct {
	Allowlist AllowlistSettings
	Policy    PolicySettings
}
