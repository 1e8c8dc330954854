// Package session is a reference session layer for authcore hosts. It
// stores sessions in Redis indexed per user, issues JWT access tokens that
// embed the owning user's security stamp, and rejects tokens whose embedded
// stamp no longer matches the stored one.
//
// The Store implements authcore's SessionRevoker port, so wiring it into
// the engine makes stamp rotation and eager revocation act together: a
// password change or two-factor mutation revokes every live session
// immediately, and any token that escapes revocation dies at the stamp
// check.
package session
