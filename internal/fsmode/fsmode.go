// Package fsmode converts between platform permission semantics and the
// platform-neutral mode bitmask carried by archive entries.
//
// On POSIX platforms the nine permission bits map 1:1 onto the neutral
// bitmask, so ToBits and FromBits compose to the identity for any
// permission set expressible in those bits. On Windows only the DOS
// read-only and hidden attributes survive; all other bits are ignored on
// read and absent on write.
package fsmode

import "io/fs"

// permMask selects the nine owner/group/other rwx bits.
const permMask = 0o777

// ToBits maps a POSIX permission set to the neutral bitmask. It never
// returns 0 for a set with at least one of the nine bits present, keeping
// 0 free to mean "unspecified".
func ToBits(perm fs.FileMode) int64 {
	return int64(perm & permMask)
}

// FromBits maps a neutral bitmask back to a POSIX permission set. Bits
// outside the nine permission positions are dropped.
func FromBits(bits int64) fs.FileMode {
	return fs.FileMode(bits) & permMask
}
