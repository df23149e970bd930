// Package password hashes and verifies account secrets with argon2id.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// NeedsUpgrade reports hashes produced with weaker parameters so the caller
// can re-hash after the next successful login. The only policy enforced
// here is a byte length range; everything else is up to the engine.
package password
