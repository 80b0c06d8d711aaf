package notify

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiscoverAgents searches for executable agents in the given directories and
// returns a map of agent name to full path. Earlier directories win when two
// contain an agent with the same name. With no paths the search order is:
// 1. ./agents/
// 2. $SUITEBOARD_HOME/agents/
// 3. /usr/local/lib/suiteboard/agents/
func DiscoverAgents(paths []string) (map[string]string, error) {
	agents := make(map[string]string)

	if len(paths) == 0 {
		paths = DefaultAgentPaths()
	}

	for _, path := range paths {
		dir := expandPath(path)

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			fullPath := filepath.Join(dir, entry.Name())
			if !isExecutable(fullPath) {
				continue
			}
			if _, exists := agents[entry.Name()]; !exists {
				agents[entry.Name()] = fullPath
			}
		}
	}

	return agents, nil
}

// DefaultAgentPaths returns the default agent search paths in priority order.
func DefaultAgentPaths() []string {
	paths := []string{"./agents/"}

	if home := os.Getenv("SUITEBOARD_HOME"); home != "" {
		paths = append(paths, filepath.Join(home, "agents"))
	}

	return append(paths, "/usr/local/lib/suiteboard/agents/")
}

// expandPath expands environment variables and resolves relative paths.
func expandPath(path string) string {
	expanded := os.ExpandEnv(path)
	if !filepath.IsAbs(expanded) {
		if abs, err := filepath.Abs(expanded); err == nil {
			return abs
		}
	}
	return expanded
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&0o111 != 0
}

// FindAgent looks up an agent by name in a discovered agents map.
func FindAgent(agents map[string]string, name string) (string, error) {
	path, exists := agents[name]
	if !exists {
		return "", fmt.Errorf("agent not found: %s", name)
	}
	return path, nil
}
