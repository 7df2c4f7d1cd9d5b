// Package setupkind declares the built-in setup kinds: their names, the
// fields their state records carry and the actions their providers accept.
package setupkind

import "github.com/schmitthub/setup-servers/internal/state"

// Setup names. Each is a sub-command directory under the home directory and
// the provider root its providers are discovered in.
const (
	DBSetupName   = "setup-db"
	FHIRSetupName = "setup-fhir-server"
)

// Database setup fields.
const (
	FieldDBName        = "dbs_name"
	FieldDBVersion     = "dbs_version"
	FieldDBType        = "dbs_type"
	FieldDBPort        = "dbs_port"
	FieldContainerName = "container_name"
	FieldContainerID   = "container_id"
	FieldServerStatus  = "server_status"
)

// FHIR server setup fields.
const (
	FieldGitRef           = "git_ref"
	FieldGitSHA           = "git_sha"
	FieldDBSetupDirectory = "dbs_setup_directory"
	FieldFHIRPort         = "fhir_port"
	FieldFHIRURL          = "fhir_url"
	FieldPID              = "pid"
	FieldDBUser           = "dbs_user"
	FieldDBPassword       = "dbs_password"

	DefaultGitRef     = "master"
	DefaultDBUser     = "postgres"
	DefaultDBPassword = "postgres"
)

// Values of FieldServerStatus.
const (
	ServerStatusCreated = "created"
	ServerStatusBuilt   = "built"
	ServerStatusRunning = "running"
	ServerStatusStopped = "stopped"
	ServerStatusRemoved = "removed"
)

// Database actions, applied in the order given.
const (
	ActionCreate = "create"
	ActionStart  = "start"
	ActionStop   = "stop"
	ActionRemove = "remove"
)

// FHIR server actions.
const (
	ActionHapiStart = "hapi-start"
	ActionHapiStop  = "hapi-stop"
)

// DBActions lists the database actions.
var DBActions = []string{ActionCreate, ActionStart, ActionStop, ActionRemove}

// FHIRActions lists the FHIR server actions.
var FHIRActions = []string{ActionHapiStart, ActionHapiStop}

// DB is the state schema of database setups.
var DB = state.Schema{
	Kind: "db",
	Fields: []state.FieldSpec{
		{Key: FieldDBName, Immutable: true, Default: "postgres", Help: "database name"},
		{Key: FieldDBVersion, Immutable: true, Help: "database server version"},
		{Key: FieldDBType, Help: "database engine, set by the provider"},
		{Key: FieldDBPort, Help: "host port the database listens on"},
		{Key: FieldContainerName},
		{Key: FieldContainerID},
		{Key: FieldServerStatus},
	},
}

// FHIR is the state schema of FHIR server setups.
var FHIR = state.Schema{
	Kind: "fhir",
	Fields: []state.FieldSpec{
		{Key: FieldGitRef, Default: DefaultGitRef, Help: "branch, tag or commit to build"},
		{Key: FieldDBSetupDirectory, Help: "setup directory of the database to connect to"},
		{Key: FieldDBUser, Default: DefaultDBUser, Help: "database user the server connects as"},
		{Key: FieldDBPassword, Default: DefaultDBPassword, Help: "password of the database user"},
		{Key: FieldGitSHA},
		{Key: FieldFHIRPort},
		{Key: FieldFHIRURL},
		{Key: FieldPID},
		{Key: FieldServerStatus},
	},
}

// Schemas maps setup names to their schemas.
var Schemas = map[string]state.Schema{
	DBSetupName:   DB,
	FHIRSetupName: FHIR,
}
