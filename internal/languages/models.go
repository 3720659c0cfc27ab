package languages

// RuntimeConfig describes how a language's source is materialized and run
// inside the sandbox. CompileCommand is empty for interpreted languages.
type RuntimeConfig struct {
	Image          string
	SourceFile     string
	CompileCommand []string
	RunCommand     []string
}

type Runtime struct {
	ID     string
	Name   string
	Config RuntimeConfig
}
