// Package external samples sensors implemented as external programs.
//
// Each configured program is run once per resolution tick with an empty
// environment. Its standard output must be a JSON array:
//
//	[{"value": 21.5, "kind": "temperature", "unit": "celsius"}]
//
// Every element becomes a reading with labels [kind, unit] against one
// gauge registered per program under the configured metric name. A failed
// run (non-zero exit, timeout, bad JSON) is logged and that tick is skipped.
package external
