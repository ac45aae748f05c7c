// Package staging manages per-media work directories.
//
// Acquire hands out a directory under staging_dir guarded by a flock so two
// analyses of the same media never share scratch files. RemoveStale and
// RemoveUnarchived reclaim directories left behind by crashed or kept runs;
// neither touches a directory whose lock is still held.
package staging
