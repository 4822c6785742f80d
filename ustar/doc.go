// Package ustar reads and writes tar archives in the POSIX ustar layout,
// with the GNU and PAX extensions needed for names that do not fit.
//
// An archive is a sequence of 512-byte blocks. Each entry is one header
// block followed by its content rounded up to a whole number of blocks; two
// zero blocks end the archive.
//
//	offset  size  field
//	     0   100  name
//	   100     8  mode
//	   108     8  uid
//	   116     8  gid
//	   124    12  size
//	   136    12  mtime
//	   148     8  checksum
//	   156     1  typeflag
//	   157   100  linkname
//	   257     6  magic ("ustar\x00" or GNU "ustar ")
//	   263     2  version ("00" or GNU " \x00")
//	   265    32  uname
//	   297    32  gname
//	   329     8  devmajor
//	   337     8  devminor
//	   345   155  prefix
//
// Numeric fields are NUL or space terminated octal, or base-256 when the
// high bit of the first byte is set. The checksum is the unsigned sum of the
// block with the checksum field read as eight spaces.
//
// Decode and Encode convert single header blocks. Reader and Writer stream
// whole archives and never seek.
package ustar
