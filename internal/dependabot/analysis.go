package dependabot

import "strings"

const (
	bumpPrefixConstant = "Bump "
	fromMarkerConstant = " from"
)

// DefaultManifests lists the dependency manifests checked for a bumped package, in lookup order.
func DefaultManifests() []string {
	return []string{
		"package.json",
		"requirements.txt",
		"pyproject.toml",
		"Gemfile",
		"pom.xml",
		"build.gradle",
		"go.mod",
		"composer.json",
		"Cargo.toml",
	}
}

// ParseBumpedPackage extracts X from a "Bump X from A to B" title.
func ParseBumpedPackage(title string) (string, bool) {
	_, afterBump, found := strings.Cut(title, bumpPrefixConstant)
	if !found {
		return "", false
	}
	packageName, _, _ := strings.Cut(afterBump, fromMarkerConstant)
	packageName = strings.TrimSpace(packageName)
	if len(packageName) == 0 {
		return "", false
	}
	return packageName, true
}
