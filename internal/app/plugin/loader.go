package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Loader finds and loads a plugin generator. Loaders that do not know the
// plugin return an error matching errNotFound so the next one is tried.
type Loader interface {
	Load(ctx context.Context, name, versionConstraint string) (Generator, error)
}

// BuiltinLoader serves the generators compiled into this module.
type BuiltinLoader struct{}

var builtins = map[string]func() Generator{
	"xml":  NewXML,
	"yaml": NewYAML,
}

// Load implements Loader.
func (BuiltinLoader) Load(_ context.Context, name, versionConstraint string) (Generator, error) {
	factory, ok := builtins[name]
	if !ok {
		return nil, errNotFound
	}
	g := factory()
	ok, err := satisfies(g.Version(), versionConstraint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(errNotFound, "builtin %s %s does not satisfy %q", name, g.Version(), versionConstraint)
	}
	return g, nil
}

// ManifestFile is the file describing an installed plugin.
const ManifestFile = "pact-plugin.json"

// PluginManifest is the content of a ManifestFile. A manifest re-publishes
// one of the builtin generators under its own name, version and content
// types; EntryPoint names the builtin.
type PluginManifest struct {
	Name                   string   `json:"name"`
	Version                string   `json:"version"`
	PluginInterfaceVersion int      `json:"pluginInterfaceVersion"`
	ExecutableType         string   `json:"executableType"`
	EntryPoint             string   `json:"entryPoint"`
	ContentTypes           []string `json:"contentTypes"`
}

// ManifestLoader loads plugins installed as <Dir>/<name>-<version>/pact-plugin.json.
type ManifestLoader struct {
	Dir      string
	Attempts uint
	Delay    time.Duration
}

// Load implements Loader. The highest installed version satisfying the
// constraint wins.
func (l ManifestLoader) Load(ctx context.Context, name, versionConstraint string) (Generator, error) {
	if l.Dir == "" {
		return nil, errNotFound
	}
	candidates, err := filepath.Glob(filepath.Join(l.Dir, name+"-*", ManifestFile))
	if err != nil {
		return nil, errors.Wrap(err, "scan plugin dir")
	}

	var best *PluginManifest
	var bestVersion *version.Version
	for _, path := range candidates {
		m, err := l.read(ctx, path)
		if err != nil {
			log.WithField("manifest", path).WithError(err).Warn("skipping unreadable plugin manifest")
			continue
		}
		if m.Name != name {
			continue
		}
		v, err := version.NewVersion(m.Version)
		if err != nil {
			log.WithField("manifest", path).Warnf("skipping plugin with invalid version %q", m.Version)
			continue
		}
		if ok, err := satisfies(m.Version, versionConstraint); err != nil || !ok {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			best, bestVersion = m, v
		}
	}
	if best == nil {
		return nil, errNotFound
	}

	if best.ExecutableType != "" && best.ExecutableType != "builtin" {
		return nil, errors.Errorf("plugin %s %s: executable type %q is not supported", best.Name, best.Version, best.ExecutableType)
	}
	factory, ok := builtins[best.EntryPoint]
	if !ok {
		return nil, errors.Errorf("plugin %s %s: unknown entry point %q", best.Name, best.Version, best.EntryPoint)
	}
	return manifestGenerator{Generator: factory(), manifest: *best}, nil
}

func (l ManifestLoader) read(ctx context.Context, path string) (*PluginManifest, error) {
	attempts := l.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := l.Delay
	if delay == 0 {
		delay = 50 * time.Millisecond
	}

	var m PluginManifest
	err := retry.Do(func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &m)
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, os.ErrNotExist)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type manifestGenerator struct {
	Generator
	manifest PluginManifest
}

func (g manifestGenerator) Name() string    { return g.manifest.Name }
func (g manifestGenerator) Version() string { return g.manifest.Version }

func (g manifestGenerator) ContentTypes() []string {
	if len(g.manifest.ContentTypes) == 0 {
		return g.Generator.ContentTypes()
	}
	out := make([]string, len(g.manifest.ContentTypes))
	copy(out, g.manifest.ContentTypes)
	sort.Strings(out)
	return out
}

func satisfies(v, constraint string) (bool, error) {
	if constraint == "" {
		return true, nil
	}
	parsed, err := version.NewVersion(v)
	if err != nil {
		return false, errors.Wrapf(err, "version %q", v)
	}
	c, err := version.NewConstraint(constraint)
	if err != nil {
		// a bare version pins that version
		pinned, verr := version.NewVersion(constraint)
		if verr != nil {
			return false, errors.Wrapf(err, "version constraint %q", constraint)
		}
		return parsed.Equal(pinned), nil
	}
	return c.Check(parsed), nil
}
