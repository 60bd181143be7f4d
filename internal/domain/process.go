package domain

// Command describes a child process invocation.
type Command struct {
	Name  string
	Args  []string
	Env   map[string]string
	Stdin string
	Dir   string
}

// PrivilegedRun is the outcome of dispatching a privileged action.
type PrivilegedRun struct {
	Result  ScriptResult
	Outcome ElevationOutcome
}

// Elevated reports whether the script ran with administrator rights.
func (p PrivilegedRun) Elevated() bool {
	return p.Outcome == ElevationAlreadyAdmin || p.Outcome == ElevationGranted
}
