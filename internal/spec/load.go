package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lex00/wetwire-topology-go/internal/topoerr"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// EnvFiles are loaded into the process environment before expansion.
	// Missing files are ignored.
	EnvFiles []string
}

// Load reads a spec file, expands ${VAR} references from the environment,
// applies defaults and validates the result.
func Load(path string, opts LoadOptions) (*GlobalSpec, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes spec YAML. Unknown fields are rejected.
func Parse(data []byte) (*GlobalSpec, error) {
	expanded := expandVars(data)

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var g GlobalSpec
	if err := dec.Decode(&g); err != nil {
		return nil, topoerr.Configf("parsing spec: %v", err)
	}

	g.ApplyDefaults()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Marshal renders the spec as YAML.
func Marshal(g *GlobalSpec) ([]byte, error) {
	return yaml.Marshal(g)
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars replaces ${VAR} with the environment value. Bare $name is left
// alone so mapping templates such as $input.body survive.
func expandVars(data []byte) []byte {
	return varPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(varPattern.FindSubmatch(m)[1])))
	})
}
