package provisioner

import "regexp"

// slugPattern matches the original's is_valid_slug: 3-30 characters, lowercase
// alphanumeric with internal hyphens, no leading or trailing hyphen.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,28}[a-z0-9]$`)

func IsValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}
