// Package auth issues and validates the bearer tokens accepted by the API.
//
// Tokens are HS256-signed JWTs carrying a subject and one of three roles:
//   - viewer: read lights, their state and history
//   - operator: viewer plus commanding light state
//   - admin: operator plus adding, editing and removing lights
//
// Role permissions are a static table; there is no user database. Tokens
// are minted offline with `prysma token` and verified by signature only.
package auth
