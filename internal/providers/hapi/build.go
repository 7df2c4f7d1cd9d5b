package hapi

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/schmitthub/setup-servers/internal/logger"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/setupkind"
	"github.com/schmitthub/setup-servers/internal/state"
)

func (p *Provider) mavenHome(setupDir string) string {
	return filepath.Join(setupDir, "apache-maven-"+p.cfg.MavenVersion)
}

func (p *Provider) mvnPath(setupDir string) string {
	name := "mvn"
	if runtime.GOOS == "windows" {
		name = "mvn.cmd"
	}
	return filepath.Join(p.mavenHome(setupDir), "bin", name)
}

// ensureMaven downloads and unpacks the Maven distribution into the setup
// directory unless it is already there, and returns the mvn executable.
func (p *Provider) ensureMaven(ctx context.Context, setupDir string, log logger.Logger) (string, error) {
	home := p.mavenHome(setupDir)
	if _, err := os.Stat(home); err == nil {
		return p.mvnPath(setupDir), nil
	}

	log.Info().Str("url", p.cfg.MavenURL).Msg("downloading Maven")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.MavenURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.deps.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", p.cfg.MavenURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: %s", p.cfg.MavenURL, resp.Status)
	}

	// Unpack next to the final location so a failed download leaves nothing behind.
	staging, err := os.MkdirTemp(setupDir, ".maven-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	if err := untarGz(resp.Body, staging); err != nil {
		return "", fmt.Errorf("unpacking %s: %w", p.cfg.MavenURL, err)
	}
	if err := os.Rename(filepath.Join(staging, filepath.Base(home)), home); err != nil {
		return "", fmt.Errorf("archive %s has no %s directory: %w", p.cfg.MavenURL, filepath.Base(home), err)
	}
	return p.mvnPath(setupDir), nil
}

// untarGz extracts a gzip-compressed tar stream into dst. Entries and
// symlinks escaping dst are rejected, including writes through symlinks
// extracted earlier.
func untarGz(r io.Reader, dst string) error {
	root, err := filepath.EvalSymlinks(dst)
	if err != nil {
		return err
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if !within(root, target) {
			return fmt.Errorf("entry %q escapes the target directory", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if _, err := resolveDir(root, target, hdr.Name); err != nil {
				return err
			}
		case tar.TypeReg:
			parent, err := resolveDir(root, filepath.Dir(target), hdr.Name)
			if err != nil {
				return err
			}
			f, err := os.OpenFile(filepath.Join(parent, filepath.Base(target)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || strings.HasPrefix(hdr.Linkname, "/") {
				return fmt.Errorf("symlink %q has absolute target %q", hdr.Name, hdr.Linkname)
			}
			parent, err := resolveDir(root, filepath.Dir(target), hdr.Name)
			if err != nil {
				return err
			}
			if !within(root, filepath.Join(parent, filepath.FromSlash(hdr.Linkname))) {
				return fmt.Errorf("symlink %q target %q escapes the target directory", hdr.Name, hdr.Linkname)
			}
			if err := os.Symlink(hdr.Linkname, filepath.Join(parent, filepath.Base(target))); err != nil {
				return err
			}
		}
	}
}

// resolveDir creates dir and returns its resolved path, which must lie
// inside root. Existing ancestors are resolved before anything is created
// so a symlink cannot redirect the creation.
func resolveDir(root, dir, name string) (string, error) {
	existing := dir
	for existing != root {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		existing = filepath.Dir(existing)
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	if !within(root, resolved) {
		return "", fmt.Errorf("entry %q escapes the target directory through a symlink", name)
	}
	rest, err := filepath.Rel(existing, dir)
	if err != nil {
		return "", err
	}
	resolved = filepath.Join(resolved, rest)
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return "", err
	}
	return resolved, nil
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// build packages the starter with Maven and refreshes the run directory.
// application-local.yaml and logback.xml are kept once present so local
// edits survive rebuilds.
func (p *Provider) build(ctx context.Context, mvn string, dirs layout, log logger.Logger) error {
	log.Info().Msg("building HAPI JPA starter, this takes a while")
	out, err := p.deps.Runner.Run(ctx, dirs.repo(), mvn,
		"-Dmaven.repo.local="+dirs.mavenRepo(),
		"-f", filepath.Join(dirs.repo(), "pom.xml"),
		"-Pboot",
		"clean", "package",
	)
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			log.Debug().Str("tool", "mvn").Msg(line)
		}
	}
	if err != nil {
		return fmt.Errorf("maven build failed, see the log file for its output: %w", err)
	}

	if err := os.MkdirAll(dirs.run(), 0o755); err != nil {
		return err
	}
	resources := filepath.Join(dirs.repo(), "src", "main", "resources")
	copies := []struct {
		src, dst string
		keep     bool
	}{
		{filepath.Join(dirs.repo(), "target", WarFile), filepath.Join(dirs.run(), WarFile), false},
		{filepath.Join(resources, "application.yaml"), filepath.Join(dirs.run(), "application.yaml"), false},
		{filepath.Join(resources, "logback.xml"), filepath.Join(dirs.run(), "logback.xml"), true},
	}
	for _, c := range copies {
		if c.keep {
			if _, err := os.Stat(c.dst); err == nil {
				continue
			}
		}
		if err := copyFile(c.src, c.dst); err != nil {
			return err
		}
	}

	local := filepath.Join(dirs.run(), LocalConfig)
	if _, err := os.Stat(local); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(local, nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copying build output: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeLocalConfig sets the listen port and the tester's server address in
// application-local.yaml, preserving every other key.
func writeLocalConfig(path string, port int, fhirURL string) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	child(doc, "server")["port"] = port
	home := child(child(child(child(doc, "hapi"), "fhir"), "tester"), "home")
	home["server_address"] = fhirURL

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// child returns m[key] as a map, replacing any non-map value.
func child(m map[string]any, key string) map[string]any {
	if c, ok := m[key].(map[string]any); ok {
		return c
	}
	c := map[string]any{}
	m[key] = c
	return c
}

// javaArgs builds the server command line. When the setup references a
// postgres database setup, the datasource points at it.
func (p *Provider) javaArgs(inv *provider.Invocation, dirs layout) ([]string, error) {
	args := []string{
		"-Dspring.profiles.active=local",
		"-Dlogging.config=" + filepath.Join(dirs.run(), "logback.xml"),
		"-jar", WarFile,
	}

	dbsDir, err := inv.State.Get(setupkind.FieldDBSetupDirectory)
	if err != nil || dbsDir == "" {
		return args, err
	}
	if inv.Context == nil {
		return nil, fmt.Errorf("no home context to locate database setup %s", dbsDir)
	}
	path := state.Path(inv.Context.SetupDir(dbsDir), setupkind.DBSetupName)
	db, err := state.NewStore(path, setupkind.DB).Load()
	if err != nil {
		return nil, fmt.Errorf("reading database setup %s: %w", dbsDir, err)
	}

	dbType, _ := db.Get(setupkind.FieldDBType)
	if dbType != "postgres" {
		inv.Logger.Warn().Str("dbs_type", dbType).Msg("database type not supported by HAPI, using the embedded database")
		return args, nil
	}
	port, _ := db.Get(setupkind.FieldDBPort)
	name, _ := db.Get(setupkind.FieldDBName)
	if port == "" {
		return nil, fmt.Errorf("database setup %s has no port, create it first", dbsDir)
	}
	user, err := inv.State.Get(setupkind.FieldDBUser)
	if err != nil {
		return nil, err
	}
	password, err := inv.State.Get(setupkind.FieldDBPassword)
	if err != nil {
		return nil, err
	}
	return append(args,
		fmt.Sprintf("--spring.datasource.url=jdbc:postgresql://localhost:%s/%s", port, name),
		"--spring.datasource.username="+user,
		"--spring.datasource.password="+password,
		"--spring.datasource.driverClassName=org.postgresql.Driver",
		"--spring.jpa.properties.hibernate.dialect=ca.uhn.fhir.jpa.model.dialect.HapiFhirPostgres94Dialect",
	), nil
}
