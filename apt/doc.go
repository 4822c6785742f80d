// Package apt builds flat APT repositories.
//
// An Index collects package stanzas and generates the repository metadata:
// the Packages index and its compressed variants, the Release file listing
// their digests and, given a private key, the clearsigned InRelease file and
// the public key. A repository is written to a directory of an afero.Fs or
// as a single tar.gz stream, and can be read back with OpenDir.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#Flat_Repository_Format
package apt
