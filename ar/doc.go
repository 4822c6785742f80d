// Package ar reads and writes archives in the common Unix ar format.
//
// An archive starts with the 8-byte magic "!<arch>\n" and is followed by a
// sequence of members. Each member is a 60-byte ASCII header and its content;
// content of odd length is followed by a single '\n' pad byte so that every
// header starts at an even offset.
//
//	offset  size  field
//	     0    16  name (space padded, GNU writers append '/')
//	    16    12  modification time, decimal seconds
//	    28     6  owner id, decimal
//	    34     6  group id, decimal
//	    40     8  file mode, octal
//	    48    10  content size, decimal
//	    58     2  terminator "`\n"
//
// The Reader works on any io.Reader and never needs to seek. By default it
// trusts the declared sizes and expects the next header exactly where the
// previous member (plus padding) ends. WithScan switches it to a repair mode
// that searches for the next header-shaped window instead, which recovers
// archives written by tools that got the padding wrong.
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html
package ar
