package deb

// Member names of the outer ar archive. The tar members carry the
// extension of their compression format, e.g. "data.tar.xz".
const (
	MemberDebianBinary = "debian-binary"
	MemberControlTar   = "control.tar"
	MemberDataTar      = "data.tar"
)

// FormatVersion is the body of the debian-binary member.
const FormatVersion = "2.0\n"

// ControlFile names a file of the control archive.
type ControlFile string

const (
	FileControl   ControlFile = "control"
	FileMd5sums   ControlFile = "md5sums"
	FileConffiles ControlFile = "conffiles"
	FilePreinst   ControlFile = "preinst"
	FilePostinst  ControlFile = "postinst"
	FilePrerm     ControlFile = "prerm"
	FilePostrm    ControlFile = "postrm"
	FileConfig    ControlFile = "config"
	FileTriggers  ControlFile = "triggers"
)

// reserved control files are generated from the Spec and never taken from
// ControlFiles.
var reserved = map[ControlFile]bool{
	FileControl: true, FileMd5sums: true, FileConffiles: true,
	FilePreinst: true, FilePostinst: true, FilePrerm: true, FilePostrm: true, FileConfig: true,
}

// Default compression of the tar members.
const (
	DefaultControlCompression = "gzip"
	DefaultDataCompression    = "xz"
)
