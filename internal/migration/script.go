package migration

import (
	"regexp"
	"strconv"
)

// scriptPattern matches "<4 digits>_<name>.sql" where name starts with a
// letter and continues with letters or underscores.
var scriptPattern = regexp.MustCompile(`^([0-9]{4})_[A-Za-z][A-Za-z_]*\.sql$`)

// Script is one discovered migration script. Its body is read on demand.
type Script struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"` // physical location, diagnostics only
	Version int    `json:"version"`
}

// ParseScript returns the script described by a file name, or false when the
// name does not follow the script naming convention.
func ParseScript(name string) (Script, bool) {
	m := scriptPattern.FindStringSubmatch(name)
	if m == nil {
		return Script{}, false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return Script{}, false
	}
	return Script{Name: name, Version: version}, true
}
