package setup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/setup-servers/internal/home"
	"github.com/schmitthub/setup-servers/internal/logger/loggertest"
	"github.com/schmitthub/setup-servers/internal/provider"
	"github.com/schmitthub/setup-servers/internal/state"
)

var dbSchema = state.Schema{
	Kind: "db",
	Fields: []state.FieldSpec{
		{Key: "db_name", Immutable: true, Default: "dbs"},
		{Key: "version", Immutable: true},
		{Key: "port"},
	},
}

type fakeProvider struct {
	decline bool
	fail    error
	applied int
	actions []string
}

func (p *fakeProvider) CanHandle(context.Context, *provider.Invocation) bool { return !p.decline }

func (p *fakeProvider) Apply(_ context.Context, inv *provider.Invocation) error {
	p.applied++
	p.actions = inv.Actions
	if p.fail != nil {
		return p.fail
	}
	return inv.State.Set("port", "55432")
}

type harness struct {
	hctx      *home.Context
	providers map[string]*fakeProvider
	orch      *Orchestrator
}

// newHarness lays out <home>/setup-db with the given provider directories.
// Each directory gets a manifest whose stem follows the entry-point rule.
func newHarness(t *testing.T, dirs map[string]string) *harness {
	t.Helper()
	homeDir := t.TempDir()
	root := filepath.Join(homeDir, "setup-db")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "setup-db"), 0o755))
	for dir, stem := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		body := "kind: fake\nfields:\n  db_name: from_manifest\n"
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, stem+".yaml"), []byte(body), 0o644))
	}

	hctx, err := home.NewContext(homeDir, "")
	require.NoError(t, err)

	h := &harness{hctx: hctx, providers: map[string]*fakeProvider{}}
	catalog := provider.Catalog{
		"fake": func(m *provider.Manifest) (provider.Provider, error) {
			p := &fakeProvider{}
			h.providers[filepath.Base(filepath.Dir(m.Path))] = p
			return p, nil
		},
	}
	h.orch = NewOrchestrator(hctx, provider.NewLoader(catalog, nil), loggertest.NewNop())
	return h
}

func twoProviders(t *testing.T) *harness {
	return newHarness(t, map[string]string{"pg--postgres--14": "postgres", "mysql": "mysql"})
}

func (h *harness) load(t *testing.T, setupDir string) *state.SetupState {
	t.Helper()
	st, err := state.NewStore(h.orch.StatePath("setup-db", setupDir), dbSchema).Load()
	require.NoError(t, err)
	return st
}

func TestRun_PersistsCurrent(t *testing.T) {
	h := twoProviders(t)

	res, err := h.orch.Run(context.Background(), Request{
		SetupName:      "setup-db",
		SetupDirectory: "pg",
		Schema:         dbSchema,
		Fields:         map[string]string{"version": "14"},
		Provider:       "postgres",
		Actions:        []string{"create", "start"},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", res.Provider)
	assert.Equal(t, "setup-db/pg--postgres--14", res.Identity)

	st := h.load(t, "pg")
	assert.Equal(t, state.StatusCurrent, st.Status)
	assert.Equal(t, "postgres", st.ProviderName)
	assert.Equal(t, "setup-db", st.SetupName)
	assert.Equal(t, map[string]string{"version": "14", "port": "55432", "db_name": "from_manifest"}, st.Fields)

	assert.Equal(t, []string{"create", "start"}, h.providers["pg--postgres--14"].actions)
	assert.Equal(t, filepath.Join(h.hctx.WorkingDir, "pg", "setup-db.state"), st.Path())
}

func TestRun_UnknownProvider(t *testing.T) {
	h := twoProviders(t)

	_, err := h.orch.Run(context.Background(), Request{
		SetupName: "setup-db", SetupDirectory: "ora", Schema: dbSchema, Provider: "oracle",
	})
	require.ErrorIs(t, err, provider.ErrNotFound)

	var nf *provider.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "setup-db", nf.SetupName)

	st := h.load(t, "ora")
	assert.True(t, st.IsNew(), "a failed first run leaves the state New")
}

func TestRun_VersionMismatch(t *testing.T) {
	h := twoProviders(t)
	req := Request{
		SetupName: "setup-db", SetupDirectory: "pg", Schema: dbSchema,
		Fields: map[string]string{"version": "14"}, Provider: "postgres",
	}
	_, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)

	req.Fields = map[string]string{"version": "16"}
	_, err = h.orch.Run(context.Background(), req)
	require.ErrorIs(t, err, ErrConfigMismatch)

	var mm *ConfigMismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, "version", mm.Field)
	assert.Equal(t, "16", mm.Requested)
	assert.Equal(t, "14", mm.Persisted)

	assert.Equal(t, 1, h.providers["pg--postgres--14"].applied, "no provider call after a mismatch")
	assert.Equal(t, "14", h.load(t, "pg").Fields["version"])
}

func TestRun_ProviderMismatchAndReuse(t *testing.T) {
	h := twoProviders(t)
	req := Request{SetupName: "setup-db", SetupDirectory: "pg", Schema: dbSchema, Provider: "postgres"}
	_, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)

	req.Provider = "mysql"
	_, err = h.orch.Run(context.Background(), req)
	var mm *ConfigMismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, ProviderField, mm.Field)

	req.Provider = ""
	res, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err, "omitted provider reuses the persisted one instead of being ambiguous")
	assert.Equal(t, "postgres", res.Provider)
	assert.Equal(t, 2, h.providers["pg--postgres--14"].applied)
}

func TestRun_Ambiguous(t *testing.T) {
	h := twoProviders(t)
	_, err := h.orch.Run(context.Background(), Request{SetupName: "setup-db", SetupDirectory: "x", Schema: dbSchema})
	require.ErrorIs(t, err, provider.ErrAmbiguous)
}

func TestRun_SingleProviderNeedsNoOverride(t *testing.T) {
	h := newHarness(t, map[string]string{"mysql": "mysql"})
	res, err := h.orch.Run(context.Background(), Request{SetupName: "setup-db", SetupDirectory: "my", Schema: dbSchema})
	require.NoError(t, err)
	assert.Equal(t, "mysql", res.Provider)
}

func TestRun_Declined(t *testing.T) {
	h := twoProviders(t)
	// Load the unit once so the test can flip the provider to declining.
	_, err := h.orch.Run(context.Background(), Request{SetupName: "setup-db", SetupDirectory: "a", Schema: dbSchema, Provider: "mysql"})
	require.NoError(t, err)
	h.providers["mysql"].decline = true

	_, err = h.orch.Run(context.Background(), Request{SetupName: "setup-db", SetupDirectory: "b", Schema: dbSchema, Provider: "mysql"})
	require.ErrorIs(t, err, provider.ErrDeclined)
	assert.True(t, h.load(t, "b").IsNew(), "declined providers cause no transition")
}

func TestRun_ApplyFailed(t *testing.T) {
	h := twoProviders(t)
	_, err := h.orch.Run(context.Background(), Request{SetupName: "setup-db", SetupDirectory: "a", Schema: dbSchema, Provider: "mysql"})
	require.NoError(t, err)

	boom := errors.New("container exited with 1")
	h.providers["mysql"].fail = boom
	_, err = h.orch.Run(context.Background(), Request{SetupName: "setup-db", SetupDirectory: "b", Schema: dbSchema, Provider: "mysql"})
	require.ErrorIs(t, err, provider.ErrApplyFailed)
	require.ErrorIs(t, err, boom)
	assert.True(t, h.load(t, "b").IsNew())
}

func TestRun_Closed(t *testing.T) {
	h := twoProviders(t)
	req := Request{SetupName: "setup-db", SetupDirectory: "pg", Schema: dbSchema, Provider: "postgres"}
	_, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)

	_, err = state.NewStore(h.orch.StatePath("setup-db", "pg"), dbSchema).Close(context.Background())
	require.NoError(t, err)

	_, err = h.orch.Run(context.Background(), req)
	require.ErrorIs(t, err, state.ErrClosed)
	assert.Equal(t, 1, h.providers["pg--postgres--14"].applied)
}

func TestRun_UnknownField(t *testing.T) {
	h := twoProviders(t)
	_, err := h.orch.Run(context.Background(), Request{
		SetupName: "setup-db", SetupDirectory: "pg", Schema: dbSchema, Provider: "postgres",
		Fields: map[string]string{"colour": "blue"},
	})
	require.ErrorIs(t, err, state.ErrUnknownField)
	assert.Empty(t, h.providers, "validation fails before any provider is loaded")
}

func TestRun_RequiresNames(t *testing.T) {
	h := twoProviders(t)
	_, err := h.orch.Run(context.Background(), Request{SetupName: "setup-db", Schema: dbSchema})
	require.Error(t, err)
}
