// Package auth issues and verifies the bearer tokens that guard the bridge
// HTTP API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. Each carries a
// subject and one of three roles:
//   - viewer reads entries and entity state
//   - operator additionally runs entity actions
//   - admin additionally provisions, reconfigures and removes entries
//
// Role permissions are a static mapping with no database lookup. Tokens are
// minted offline with the `lgtvbridge token` command.
package auth
