// Package version decides whether a candidate release is a valid
// upgrade over the currently deployed one.
package version

import "github.com/Masterminds/semver/v3"

// IsValidUpgrade reports whether candidate is a strict semantic-version
// upgrade over current. A string that does not parse as a full
// MAJOR.MINOR.PATCH semantic version rejects the upgrade rather than
// erroring, so callers can treat malformed input as a plain refusal.
func IsValidUpgrade(current, candidate string) bool {
	cur, err := semver.StrictNewVersion(current)
	if err != nil {
		return false
	}
	cand, err := semver.StrictNewVersion(candidate)
	if err != nil {
		return false
	}
	return cand.GreaterThan(cur)
}
