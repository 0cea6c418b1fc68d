package plugin

// Spec is one command-line plugin specification: a library name, an
// optional label (selecting one plugin within a multi-plugin library),
// and how many instances to create from it. Per spec.md §4.1/§6.4.
type Spec struct {
	Library    string
	Label      string // empty means "first descriptor in the library"
	Repetition int
}
