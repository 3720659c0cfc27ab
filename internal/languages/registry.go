package languages

import (
	"sync"

	"github.com/codecollab/execd/internal/config"
	"github.com/codecollab/execd/internal/domain"
)

type Registry struct {
	mu       sync.RWMutex
	runtimes map[domain.Language]Runtime
}

// NewRegistry builds a registry for the four supported languages, binding
// each to the sandbox image named in the configuration.
func NewRegistry(images config.ImagesConfig) *Registry {
	r := &Registry{
		runtimes: make(map[domain.Language]Runtime),
	}
	r.registerDefaults(images)
	return r
}

func (r *Registry) Register(lang domain.Language, rt Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimes[lang] = rt
}

func (r *Registry) Get(lang domain.Language) (Runtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.runtimes[lang]
	if !ok {
		return Runtime{}, domain.ErrUnsupportedLanguage
	}
	return rt, nil
}

func (r *Registry) List() []Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rts := make([]Runtime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		rts = append(rts, rt)
	}
	return rts
}

func (r *Registry) registerDefaults(images config.ImagesConfig) {
	r.Register(domain.LangJavaScript, Runtime{
		ID:   string(domain.LangJavaScript),
		Name: "JavaScript",
		Config: RuntimeConfig{
			Image:      images.JavaScript,
			SourceFile: "main.js",
			RunCommand: []string{"node", "main.js"},
		},
	})

	r.Register(domain.LangPython, Runtime{
		ID:   string(domain.LangPython),
		Name: "Python",
		Config: RuntimeConfig{
			Image:      images.Python,
			SourceFile: "main.py",
			RunCommand: []string{"python3", "main.py"},
		},
	})

	r.Register(domain.LangCpp, Runtime{
		ID:   string(domain.LangCpp),
		Name: "C++",
		Config: RuntimeConfig{
			Image:          images.Cpp,
			SourceFile:     "main.cpp",
			CompileCommand: []string{"g++", "main.cpp", "-O2", "-o", "main"},
			RunCommand:     []string{"./main"},
		},
	})

	r.Register(domain.LangJava, Runtime{
		ID:   string(domain.LangJava),
		Name: "Java",
		Config: RuntimeConfig{
			Image:          images.Java,
			SourceFile:     "Main.java",
			CompileCommand: []string{"javac", "Main.java"},
			RunCommand:     []string{"java", "Main"},
		},
	})
}
