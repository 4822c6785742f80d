// Package deb assembles and parses Debian binary packages.
//
// A binary package is an ar archive of three members, in this order:
// debian-binary holding the format version, control.tar with the control
// paragraph and maintainer scripts, and data.tar with the files to install.
// Both tar members may be compressed with any codec of a
// compression.Registry.
//
// # Creating packages
//
// A Spec describes a package: its control paragraph, scripts, extra control
// files and a payload read from a directory of an afero.Fs and from
// in-memory Files. Create computes Installed-Size, md5sums and conffiles and
// writes the package to any io.Writer.
//
// # Parsing packages
//
// Parse streams a package from any io.Reader. The control archive is kept
// in memory, the data archive is only listed: file bodies are handed to the
// WithFileHandler callback. The returned control record carries the size
// and digests of the whole file, ready for a Packages index.
//
// Both operations report progress to a Listener.
package deb
