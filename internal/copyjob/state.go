package copyjob

// State is the step a unit has reached. A unit moves forward through the
// states in order and may drop to Failed from any of them.
type State int

const (
	Pending State = iota
	Fetched
	SchemaInferred
	TableReplaced
	Written
	Done
	Failed
)

var stateNames = [...]string{
	Pending:        "pending",
	Fetched:        "fetched",
	SchemaInferred: "schema_inferred",
	TableReplaced:  "table_replaced",
	Written:        "written",
	Done:           "done",
	Failed:         "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
