// Package control reads and writes Debian control data: the key/value
// paragraphs used by DEBIAN/control, Packages indices and Release files.
//
// A paragraph is a sequence of "Field: value" lines. Lines starting with
// whitespace continue the previous field; a continuation holding only "."
// stands for an empty line. Paragraphs are separated by blank lines and
// lines starting with '#' are comments.
//
// Parse checks the syntax and coerces typed fields; Decode additionally
// validates a binary package paragraph (required fields, architecture).
//
// References:
//   - https://www.debian.org/doc/debian-policy/ch-controlfields.html
//   - https://manpages.debian.org/unstable/dpkg-dev/deb822.5.en.html
package control
