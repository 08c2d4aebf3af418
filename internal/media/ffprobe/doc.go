// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns the parsed Result; helpers expose the
// first video stream, container duration and display aspect ratio used by the
// aspect correction and chapter stages.
package ffprobe
