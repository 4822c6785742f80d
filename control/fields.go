package control

// Field is the name of a control field. Names compare case-insensitively.
type Field string

// Fields of a binary package paragraph.
const (
	FieldPackage            Field = "Package"
	FieldVersion            Field = "Version"
	FieldArchitecture       Field = "Architecture"
	FieldMaintainer         Field = "Maintainer"
	FieldOriginalMaintainer Field = "Original-Maintainer"
	FieldDescription        Field = "Description"
	FieldSection            Field = "Section"
	FieldPriority           Field = "Priority"
	FieldHomepage           Field = "Homepage"
	FieldEssential          Field = "Essential"
	FieldDepends            Field = "Depends"
	FieldPreDepends         Field = "Pre-Depends"
	FieldRecommends         Field = "Recommends"
	FieldSuggests           Field = "Suggests"
	FieldEnhances           Field = "Enhances"
	FieldConflicts          Field = "Conflicts"
	FieldBreaks             Field = "Breaks"
	FieldReplaces           Field = "Replaces"
	FieldProvides           Field = "Provides"
	FieldBuiltUsing         Field = "Built-Using"
	FieldSource             Field = "Source"
	FieldInstalledSize      Field = "Installed-Size"
)

// Fields added to a paragraph when it describes a package file, as in a
// Packages index.
const (
	FieldFilename Field = "Filename"
	FieldSize     Field = "Size"
	FieldMD5sum   Field = "MD5sum"
	FieldSHA1     Field = "SHA1"
	FieldSHA256   Field = "SHA256"
	FieldSHA512   Field = "SHA512"
)

// Required lists the fields every binary package paragraph must have.
var Required = []Field{FieldPackage, FieldArchitecture, FieldVersion, FieldMaintainer, FieldDescription}

// personFields hold a Person.
var personFields = []Field{FieldMaintainer, FieldOriginalMaintainer}

// intFields hold a decimal integer.
var intFields = []Field{FieldSize, FieldInstalledSize}

// architectures is the fixed set of values accepted in Architecture.
var architectures = map[string]bool{
	"all": true, "any": true, "source": true, "linux-any": true,
	"amd64": true, "arm64": true, "armel": true, "armhf": true, "i386": true,
	"loong64": true, "mips64el": true, "mipsel": true, "ppc64el": true,
	"riscv64": true, "s390x": true,
	"alpha": true, "arc": true, "hppa": true, "ia64": true, "m68k": true,
	"powerpc": true, "ppc64": true, "sh4": true, "sparc64": true, "x32": true,
	"hurd-i386": true, "hurd-amd64": true,
	"kfreebsd-amd64": true, "kfreebsd-i386": true,
}

// ValidArchitecture reports whether arch is a known architecture name.
func ValidArchitecture(arch string) bool {
	return architectures[arch]
}
