// Package permission defines the permission string model
// ("resource:action") and the role registry that maps role names to a
// numeric level and a permission set.
//
// The registry is populated during startup, frozen, and then read
// concurrently for the life of the process. The role named [AdminRole] is a
// sentinel: it holds every permission regardless of its registered set.
//
// # What this package must NOT do
//
//   - Decide which permissions exist semantically (that is configuration
//     data owned by the host application).
//   - Perform I/O or depend on any other authcore package.
package permission
