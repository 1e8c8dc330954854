package permission

import "strings"

// AdminRole is the sentinel role name that short-circuits every permission
// check to true.
const AdminRole = "ADMIN"

// ManageAction is the ownership-override action derived from update and
// delete permissions.
const ManageAction = "manage"

// Parse splits a permission string into its resource and action parts.
// ok is false for anything that is not exactly "resource:action" with both
// parts non-empty.
func Parse(perm string) (resource, action string, ok bool) {
	idx := strings.IndexByte(perm, ':')
	if idx <= 0 || idx == len(perm)-1 {
		return "", "", false
	}
	if strings.IndexByte(perm[idx+1:], ':') >= 0 {
		return "", "", false
	}
	return perm[:idx], perm[idx+1:], true
}

// Valid reports whether perm is a well-formed permission string.
func Valid(perm string) bool {
	_, _, ok := Parse(perm)
	return ok
}

// ManageVariant derives the "manage"-scoped variant of an update or delete
// permission: "posts:update" and "posts:delete" both map to "posts:manage".
// Permissions with other actions have no manage variant and return "".
func ManageVariant(perm string) string {
	resource, action, ok := Parse(perm)
	if !ok {
		return ""
	}
	switch action {
	case "update", "delete":
		return resource + ":" + ManageAction
	}
	return ""
}
