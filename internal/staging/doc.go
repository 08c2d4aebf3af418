// Package staging removes working files left in the temp directory: the
// downloaded file, its snapshot directories, and leftovers from earlier runs.
package staging
