package hapi

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/schmitthub/setup-servers/internal/git/gittest"
	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/logger/loggertest"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/setupkind"
	"github.com/schmitthub/setup-servers/internal/state"
)

// fakeRunner stands in for mvn and java. A build writes the war into the
// checkout so the copy step finds it.
type fakeRunner struct {
	mu       sync.Mutex
	builds   int
	buildErr error
	started  [][]string
	alive    map[int]bool
	signaled []int
	nextPID  int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{alive: map[int]bool{}, nextPID: 4242}
}

func (r *fakeRunner) Run(_ context.Context, dir, _ string, _ ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds++
	if r.buildErr != nil {
		return []byte("[ERROR] BUILD FAILURE\n"), r.buildErr
	}
	if err := os.MkdirAll(filepath.Join(dir, "target"), 0o755); err != nil {
		return nil, err
	}
	war := []byte("war " + strconv.Itoa(r.builds))
	return []byte("[INFO] BUILD SUCCESS\n"), os.WriteFile(filepath.Join(dir, "target", WarFile), war, 0o644)
}

func (r *fakeRunner) Start(_, _ string, name string, args ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid := r.nextPID
	r.nextPID++
	r.alive[pid] = true
	r.started = append(r.started, append([]string{name}, args...))
	return pid, nil
}

func (r *fakeRunner) Alive(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive[pid]
}

func (r *fakeRunner) Interrupt(pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signaled = append(r.signaled, pid)
	delete(r.alive, pid)
	return nil
}

func (r *fakeRunner) kill(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.alive, pid)
}

// mavenArchive returns a tar.gz holding apache-maven-<version>/bin/mvn.
func mavenArchive(t *testing.T, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	root := "apache-maven-" + version + "/"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: root, Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: root + "bin/", Typeflag: tar.TypeDir, Mode: 0o755}))
	script := []byte("#!/bin/sh\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: root + "bin/mvn", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(script))}))
	_, err := tw.Write(script)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

type harness struct {
	hctx      *home.Context
	runner    *fakeRunner
	provider  *Provider
	sha       string
	syncs     int
	downloads int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hctx, err := home.NewContext(t.TempDir(), "")
	require.NoError(t, err)

	h := &harness{hctx: hctx, runner: newFakeRunner(), sha: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	archive := mavenArchive(t, "3.8.6")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.downloads++
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	p, err := New(&provider.Manifest{Kind: Kind, Path: "hapi-jpa-starter.yaml"}, Deps{
		Defaults: Config{
			GitURL:       "https://example.invalid/hapi.git",
			MavenURL:     srv.URL + "/apache-maven-3.8.6-bin.tar.gz",
			MavenVersion: "3.8.6",
			Port:         58080,
		},
		HTTPClient: srv.Client(),
		Runner:     h.runner,
		Sync: func(_ context.Context, dir, _, _ string) (string, error) {
			h.syncs++
			resources := filepath.Join(dir, "src", "main", "resources")
			if err := os.MkdirAll(resources, 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(filepath.Join(resources, "application.yaml"), []byte("spring: {}\n"), 0o644); err != nil {
				return "", err
			}
			return h.sha, os.WriteFile(filepath.Join(resources, "logback.xml"), []byte("<configuration/>"), 0o644)
		},
	})
	require.NoError(t, err)
	h.provider = p
	return h
}

func (h *harness) invocation(t *testing.T, actions ...string) *provider.Invocation {
	t.Helper()
	setupDir := h.hctx.SetupDir("fhir1")
	st, err := state.NewStore(state.Path(setupDir, setupkind.FHIRSetupName), setupkind.FHIR).LoadOrCreate()
	require.NoError(t, err)
	st.SetupName = setupkind.FHIRSetupName
	return &provider.Invocation{
		Context:  h.hctx,
		State:    st,
		SetupDir: setupDir,
		Actions:  actions,
		Logger:   loggertest.NewNop(),
	}
}

func field(t *testing.T, st *state.SetupState, key string) string {
	t.Helper()
	v, err := st.Get(key)
	require.NoError(t, err)
	return v
}

func TestNew_RejectsUnknownConfig(t *testing.T) {
	_, err := New(&provider.Manifest{Config: map[string]any{"jdk": "21"}}, Deps{})
	assert.Error(t, err)
}

func TestNew_ManifestOverridesDefaults(t *testing.T) {
	p, err := New(&provider.Manifest{Config: map[string]any{"port": "9090", "git_url": "file:///srv/hapi"}}, Deps{
		Defaults: Config{GitURL: "https://x", MavenURL: "https://m", MavenVersion: "3.9.0", Port: 8080},
	})
	require.NoError(t, err)
	assert.Equal(t, 9090, p.Config().Port)
	assert.Equal(t, "file:///srv/hapi", p.Config().GitURL)
	assert.Equal(t, "3.9.0", p.Config().MavenVersion)
	assert.Equal(t, "java", p.Config().Java)
}

func TestCanHandle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.True(t, h.provider.CanHandle(ctx, h.invocation(t, setupkind.ActionHapiStart)))
	assert.False(t, h.provider.CanHandle(ctx, h.invocation(t, "create")))
}

func TestApply_StartBuildsAndRuns(t *testing.T) {
	h := newHarness(t)
	inv := h.invocation(t)

	require.NoError(t, h.provider.Apply(context.Background(), inv))

	assert.Equal(t, 1, h.downloads)
	assert.FileExists(t, filepath.Join(inv.SetupDir, "apache-maven-3.8.6", "bin", "mvn"))
	assert.Equal(t, 1, h.runner.builds)
	assert.FileExists(t, filepath.Join(inv.SetupDir, RunDir, WarFile))
	assert.FileExists(t, filepath.Join(inv.SetupDir, RunDir, "logback.xml"))

	assert.Equal(t, h.sha, field(t, inv.State, setupkind.FieldGitSHA))
	assert.Equal(t, setupkind.ServerStatusRunning, field(t, inv.State, setupkind.FieldServerStatus))
	assert.Equal(t, "4242", field(t, inv.State, setupkind.FieldPID))
	port := field(t, inv.State, setupkind.FieldFHIRPort)
	assert.Equal(t, "http://localhost:"+port+"/fhir", field(t, inv.State, setupkind.FieldFHIRURL))

	data, err := os.ReadFile(filepath.Join(inv.SetupDir, RunDir, LocalConfig))
	require.NoError(t, err)
	var local struct {
		Server struct {
			Port int `yaml:"port"`
		} `yaml:"server"`
		Hapi struct {
			Fhir struct {
				Tester struct {
					Home struct {
						ServerAddress string `yaml:"server_address"`
					} `yaml:"home"`
				} `yaml:"tester"`
			} `yaml:"fhir"`
		} `yaml:"hapi"`
	}
	require.NoError(t, yaml.Unmarshal(data, &local))
	assert.Equal(t, port, strconv.Itoa(local.Server.Port))
	assert.Equal(t, field(t, inv.State, setupkind.FieldFHIRURL), local.Hapi.Fhir.Tester.Home.ServerAddress)

	require.Len(t, h.runner.started, 1)
	assert.Equal(t, "java", h.runner.started[0][0])
	assert.Contains(t, h.runner.started[0], WarFile)
}

func TestApply_StartWhileRunningSameBuildIsNoop(t *testing.T) {
	h := newHarness(t)
	inv := h.invocation(t, setupkind.ActionHapiStart)
	ctx := context.Background()
	require.NoError(t, h.provider.Apply(ctx, inv))
	require.NoError(t, h.provider.Apply(ctx, inv))

	assert.Equal(t, 1, h.runner.builds)
	assert.Len(t, h.runner.started, 1)
	assert.Equal(t, 1, h.downloads)
	assert.Equal(t, 2, h.syncs)
}

func TestApply_NewRefWhileRunningFails(t *testing.T) {
	h := newHarness(t)
	inv := h.invocation(t, setupkind.ActionHapiStart)
	ctx := context.Background()
	require.NoError(t, h.provider.Apply(ctx, inv))

	h.sha = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	err := h.provider.Apply(ctx, inv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hapi-stop")
	assert.Equal(t, 1, h.runner.builds)
}

func TestApply_StopThenRebuildOnNewRef(t *testing.T) {
	h := newHarness(t)
	inv := h.invocation(t, setupkind.ActionHapiStart)
	ctx := context.Background()
	require.NoError(t, h.provider.Apply(ctx, inv))

	inv.Actions = []string{setupkind.ActionHapiStop}
	require.NoError(t, h.provider.Apply(ctx, inv))
	assert.Equal(t, []int{4242}, h.runner.signaled)
	assert.Empty(t, field(t, inv.State, setupkind.FieldPID))
	assert.Equal(t, setupkind.ServerStatusStopped, field(t, inv.State, setupkind.FieldServerStatus))

	h.sha = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	inv.Actions = []string{setupkind.ActionHapiStart}
	require.NoError(t, h.provider.Apply(ctx, inv))
	assert.Equal(t, 2, h.runner.builds)
	assert.Equal(t, h.sha, field(t, inv.State, setupkind.FieldGitSHA))
	assert.Equal(t, "4243", field(t, inv.State, setupkind.FieldPID))
}

func TestApply_DeadProcessIsRestarted(t *testing.T) {
	h := newHarness(t)
	inv := h.invocation(t, setupkind.ActionHapiStart)
	ctx := context.Background()
	require.NoError(t, h.provider.Apply(ctx, inv))
	h.runner.kill(4242)

	require.NoError(t, h.provider.Apply(ctx, inv))
	assert.Equal(t, 1, h.runner.builds)
	assert.Len(t, h.runner.started, 2)
	assert.Equal(t, "4243", field(t, inv.State, setupkind.FieldPID))
}

func TestApply_BuildFailure(t *testing.T) {
	h := newHarness(t)
	h.runner.buildErr = errors.New("exit status 1")
	inv := h.invocation(t)

	err := h.provider.Apply(context.Background(), inv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maven build failed")
	assert.Empty(t, h.runner.started)
	assert.Empty(t, field(t, inv.State, setupkind.FieldGitSHA))
}

func TestApply_PostgresDatasource(t *testing.T) {
	h := newHarness(t)
	dbStore := state.NewStore(state.Path(h.hctx.SetupDir("pg"), setupkind.DBSetupName), setupkind.DB)
	db, err := dbStore.LoadOrCreate()
	require.NoError(t, err)
	db.SetupName = setupkind.DBSetupName
	require.NoError(t, db.Set(setupkind.FieldDBType, "postgres"))
	require.NoError(t, db.Set(setupkind.FieldDBPort, "55432"))
	require.NoError(t, dbStore.Save(db))

	inv := h.invocation(t)
	require.NoError(t, inv.State.Set(setupkind.FieldDBSetupDirectory, "pg"))
	require.NoError(t, h.provider.Apply(context.Background(), inv))

	require.Len(t, h.runner.started, 1)
	assert.Contains(t, h.runner.started[0], "--spring.datasource.url=jdbc:postgresql://localhost:55432/postgres")
	assert.Contains(t, h.runner.started[0], "--spring.datasource.username=postgres")
	assert.Contains(t, h.runner.started[0], "--spring.datasource.password=postgres")
}

func TestApply_PostgresDatasourceCredentials(t *testing.T) {
	h := newHarness(t)
	dbStore := state.NewStore(state.Path(h.hctx.SetupDir("pg"), setupkind.DBSetupName), setupkind.DB)
	db, err := dbStore.LoadOrCreate()
	require.NoError(t, err)
	db.SetupName = setupkind.DBSetupName
	require.NoError(t, db.Set(setupkind.FieldDBType, "postgres"))
	require.NoError(t, db.Set(setupkind.FieldDBPort, "55432"))
	require.NoError(t, dbStore.Save(db))

	inv := h.invocation(t)
	require.NoError(t, inv.State.Set(setupkind.FieldDBSetupDirectory, "pg"))
	require.NoError(t, inv.State.Set(setupkind.FieldDBUser, "hapi"))
	require.NoError(t, inv.State.Set(setupkind.FieldDBPassword, "s3cret"))
	require.NoError(t, h.provider.Apply(context.Background(), inv))

	require.Len(t, h.runner.started, 1)
	assert.Contains(t, h.runner.started[0], "--spring.datasource.username=hapi")
	assert.Contains(t, h.runner.started[0], "--spring.datasource.password=s3cret")
}

func TestApply_MissingDatabaseSetup(t *testing.T) {
	h := newHarness(t)
	inv := h.invocation(t)
	require.NoError(t, inv.State.Set(setupkind.FieldDBSetupDirectory, "nope"))

	err := h.provider.Apply(context.Background(), inv)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, h.runner.started)
}

func TestWriteLocalConfig_PreservesKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), LocalConfig)
	require.NoError(t, os.WriteFile(path, []byte("spring:\n  main:\n    banner-mode: off\nserver:\n  port: 1\n"), 0o644))

	require.NoError(t, writeLocalConfig(path, 8081, "http://localhost:8081/fhir"))

	var doc map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{"port": 8081}, doc["server"])
	assert.Equal(t, "off", doc["spring"].(map[string]any)["main"].(map[string]any)["banner-mode"])
}

func TestUntarGz_RejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil", Typeflag: tar.TypeReg, Mode: 0o644}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	err := untarGz(&buf, t.TempDir())
	assert.ErrorContains(t, err, "escapes")
}

// tarGz builds an archive from headers; regular entries get body as content.
func tarGz(t *testing.T, body string, headers ...*tar.Header) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range headers {
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestUntarGz_Symlinks(t *testing.T) {
	tests := []struct {
		name    string
		headers []*tar.Header
		wantErr string
	}{
		{
			name: "absolute target",
			headers: []*tar.Header{
				{Name: "m/etc", Typeflag: tar.TypeSymlink, Linkname: "/etc"},
			},
			wantErr: "absolute target",
		},
		{
			name: "relative target outside",
			headers: []*tar.Header{
				{Name: "m/up", Typeflag: tar.TypeSymlink, Linkname: "../../outside"},
			},
			wantErr: "escapes",
		},
		{
			name: "write through a chained symlink",
			headers: []*tar.Header{
				{Name: "self", Typeflag: tar.TypeSymlink, Linkname: "."},
				{Name: "parent", Typeflag: tar.TypeSymlink, Linkname: "self/.."},
				{Name: "parent/evil", Typeflag: tar.TypeReg, Mode: 0o644},
			},
			wantErr: "through a symlink",
		},
		{
			name: "directory through a chained symlink",
			headers: []*tar.Header{
				{Name: "self", Typeflag: tar.TypeSymlink, Linkname: "."},
				{Name: "parent", Typeflag: tar.TypeSymlink, Linkname: "self/.."},
				{Name: "parent/made/", Typeflag: tar.TypeDir, Mode: 0o755},
			},
			wantErr: "through a symlink",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			dst := filepath.Join(base, "staging")
			require.NoError(t, os.Mkdir(dst, 0o755))

			err := untarGz(tarGz(t, "x", tt.headers...), dst)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.NoFileExists(t, filepath.Join(base, "evil"))
			assert.NoDirExists(t, filepath.Join(base, "made"))
		})
	}
}

func TestUntarGz_InternalSymlink(t *testing.T) {
	dst := t.TempDir()
	archive := tarGz(t, "#!/bin/sh\n",
		&tar.Header{Name: "m/bin/", Typeflag: tar.TypeDir, Mode: 0o755},
		&tar.Header{Name: "m/bin/mvn", Typeflag: tar.TypeReg, Mode: 0o755},
		&tar.Header{Name: "m/mvn", Typeflag: tar.TypeSymlink, Linkname: "bin/mvn"},
		&tar.Header{Name: "m/boot", Typeflag: tar.TypeSymlink, Linkname: "bin"},
		&tar.Header{Name: "m/boot/extra", Typeflag: tar.TypeReg, Mode: 0o644},
	)

	require.NoError(t, untarGz(archive, dst))
	data, err := os.ReadFile(filepath.Join(dst, "m", "mvn"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))
	assert.FileExists(t, filepath.Join(dst, "m", "bin", "extra"))
}

func TestApply_WithGitCheckout(t *testing.T) {
	up := gittest.NewUpstream(t)
	sha := up.Commit(t, "starter", map[string]string{
		"pom.xml":                             "<project/>",
		"src/main/resources/application.yaml": "spring: {}\n",
		"src/main/resources/logback.xml":      "<configuration/>",
	})
	up.Branch(t, "release", sha)

	h := newHarness(t)
	p, err := New(&provider.Manifest{Config: map[string]any{"git_url": up.Dir}}, Deps{
		Defaults:   h.provider.cfg,
		HTTPClient: h.provider.deps.HTTPClient,
		Runner:     h.runner,
	})
	require.NoError(t, err)

	inv := h.invocation(t, setupkind.ActionHapiStart)
	require.NoError(t, inv.State.Set(setupkind.FieldGitRef, "release"))
	require.NoError(t, p.Apply(context.Background(), inv))
	assert.Equal(t, sha, field(t, inv.State, setupkind.FieldGitSHA))
	assert.FileExists(t, filepath.Join(inv.SetupDir, RepoDir, "pom.xml"))
}
