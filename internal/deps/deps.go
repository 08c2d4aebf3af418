// Package deps reports whether the external executables kctvfetch drives are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an executable and whether a run can proceed without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the lookup outcome for one Requirement. Path is the resolved
// executable when Available.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// lookup resolves req.Command, or the first of fallbacks on PATH when no
// command is configured.
func lookup(req Requirement, fallbacks ...string) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}

	candidates := fallbacks
	if req.Command != "" {
		candidates = []string{req.Command}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			status.Available = true
			status.Path = path
			return status
		}
	}

	switch {
	case req.Command != "":
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
	case len(fallbacks) > 0:
		status.Detail = "none of " + strings.Join(fallbacks, ", ") + " found on PATH"
	default:
		status.Detail = "command not configured"
	}
	return status
}

// CheckBinaries looks up every requirement.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, lookup(req))
	}
	return results
}

// Missing filters statuses down to unavailable required executables.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
