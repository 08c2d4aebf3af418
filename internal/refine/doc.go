// Package refine runs the optional post-download stages against a working copy
// of a broadcast: aspect correction, timestamp detection and chapter muxing.
//
// Stages rewrite the working file through a temporary output that is renamed
// over it on success, so a failed stage leaves the previous file intact and the
// broadcast can still be delivered.
package refine
