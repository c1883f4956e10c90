// Package core provides the types and errors shared by the installer packages.
package core

import (
	"fmt"
	"strings"
)

// DependencyGroup selects one of the dependency maps of a manifest.
type DependencyGroup string

const (
	Prod     DependencyGroup = "prod"
	Dev      DependencyGroup = "dev"
	Optional DependencyGroup = "optional"
)

// AllGroups returns every dependency group in installation order.
func AllGroups() []DependencyGroup {
	return []DependencyGroup{Prod, Dev, Optional}
}

// ParseDependencyGroup accepts the group names and their manifest field aliases.
func ParseDependencyGroup(s string) (DependencyGroup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "dependencies":
		return Prod, nil
	case "dev", "devdependencies":
		return Dev, nil
	case "optional", "optionaldependencies":
		return Optional, nil
	}
	return "", fmt.Errorf("unknown dependency group: %s", s)
}

// ImportMethod controls how files are imported from the store into a package directory.
type ImportMethod string

const (
	ImportAuto        ImportMethod = "auto"
	ImportHardlink    ImportMethod = "hardlink"
	ImportCopy        ImportMethod = "copy"
	ImportClone       ImportMethod = "clone"
	ImportCloneOrCopy ImportMethod = "clone-or-copy"
)

// ParseImportMethod parses a configured import method name.
// Every known name parses; only ImportAuto is accepted by the importer.
func ParseImportMethod(s string) (ImportMethod, error) {
	switch m := ImportMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case ImportAuto, ImportHardlink, ImportCopy, ImportClone, ImportCloneOrCopy:
		return m, nil
	case "":
		return ImportAuto, nil
	}
	return "", fmt.Errorf("unknown package import method: %s", s)
}
