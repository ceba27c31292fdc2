// Package password hashes and verifies account passwords with Argon2id for the
// development backend.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters than the
// hasher's own so a caller can re-hash after a successful login.
//
// This package never logs or stores plaintext.
package password
