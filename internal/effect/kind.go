package effect

// Kind identifies one effect type in the closed taxonomy.
// The taxonomy is a wire contract: kinds are stable strings, not tied to
// any transport.
type Kind string

const (
	KindDBQuery     Kind = "db.query"
	KindHTTPRequest Kind = "http.request"
	KindKVGet       Kind = "kv.get"
	KindKVSet       Kind = "kv.set"
	KindKVDelete    Kind = "kv.delete"
	KindTimeNow     Kind = "time.now"
	KindRandBytes   Kind = "rand.bytes"
	KindLogWrite    Kind = "log.write"
)

// AllKinds lists every kind in the taxonomy, in contract order.
func AllKinds() []Kind {
	return []Kind{
		KindDBQuery,
		KindHTTPRequest,
		KindKVGet,
		KindKVSet,
		KindKVDelete,
		KindTimeNow,
		KindRandBytes,
		KindLogWrite,
	}
}

// Valid reports whether k names a kind in the taxonomy.
func (k Kind) Valid() bool {
	_, ok := variantTable[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// QueryMode selects the multiplicity contract of a db.query effect.
type QueryMode string

const (
	// QueryOne requires exactly one matching row. Zero rows is the
	// no_rows variant; more than one is multiple_rows.
	QueryOne QueryMode = "one"
	// QueryMany returns all matching rows.
	QueryMany QueryMode = "many"
	// QueryExec runs a statement and returns the affected-row count.
	QueryExec QueryMode = "exec"
)

// ValidQueryModes defines the allowed db.query modes.
var ValidQueryModes = map[QueryMode]bool{
	QueryOne:  true,
	QueryMany: true,
	QueryExec: true,
}

// LogLevel is the severity of a log.write effect.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ValidLogLevels defines the allowed log.write levels.
var ValidLogLevels = map[LogLevel]bool{
	LevelDebug: true,
	LevelInfo:  true,
	LevelWarn:  true,
	LevelError: true,
}
