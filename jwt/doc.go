// Package jwt issues and verifies the session tokens returned after a
// successful login. Tokens carry the user ID and normalized identifier only;
// they are stateless and expire after the configured TTL.
package jwt
