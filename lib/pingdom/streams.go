package pingdom

import (
	_ "embed"
	"sync"

	"tap-pingdom/lib/openapi"
	"tap-pingdom/lib/schemapatch"
)

// Pingdom's published OpenAPI document, vendored so schema resolution
// does not depend on the vendor's docs site being reachable at sync
// time.
//
//go:embed openapi.json
var openapiJSON []byte

var loadDocument = sync.OnceValues(func() (*openapi.Document, error) {
	return openapi.Load(openapiJSON)
})

func componentSchema(key string) func() (map[string]any, error) {
	return func() (map[string]any, error) {
		doc, err := loadDocument()
		if err != nil {
			return nil, err
		}
		return doc.Schema(key)
	}
}

func staticSchema(schema map[string]any) func() (map[string]any, error) {
	return func() (map[string]any, error) { return schema, nil }
}

// Stream describes one resource extracted from the API. The whole
// connector is this table of descriptors plus the generic sync loop in
// sync.go; per-stream behavior lives in the Query / PostProcess /
// ChildContext hooks, not in subtypes.
type Stream struct {
	Name           string
	Path           string
	PrimaryKeys    []string
	ReplicationKey string
	// gjson path of the record list inside a page body. Doubles as the
	// paginator's record-counting expression.
	RecordPath string
	PageSize   int
	// Restricted marks resources the vendor only serves to accounts
	// with special permissions; they are skipped unless requested.
	Restricted bool
	// Parent is set on child streams, which are synced once per parent
	// record rather than at the top level.
	Parent string

	Schema func() (map[string]any, error)
	// Query returns the stream's static query parameters; the offset
	// cursor and the `from` filter are contributed by the sync loop.
	Query func(cfg Config) map[string]string
	// PostProcess may rewrite or drop (nil) a record before emission.
	PostProcess func(record, parentCtx map[string]any) map[string]any

	Children     []*Stream
	ChildContext func(record map[string]any) map[string]any
}

// Results is a child of Checks: raw uptime test results fetched per
// check id.
//
// Manual schema: the published spec defines the result item inline in a
// response wrapper, omits the probedesc property the API actually
// returns, and checkid is injected from the parent context rather than
// present in the response.
var Results = &Stream{
	Name:           "results",
	Path:           "/results/{checkid}",
	PrimaryKeys:    []string{"checkid", "time"},
	ReplicationKey: "time",
	RecordPath:     "results",
	PageSize:       1000,
	Parent:         "checks",
	Schema: staticSchema(objectSchema(map[string]any{
		"checkid":        property("integer", "Check identifier"),
		"time":           property("integer", "Test timestamp (Unix time)"),
		"status":         property("string", "Test result status"),
		"responsetime":   property("integer", "Response time (ms)"),
		"statusdesc":     property("string", "Status description"),
		"statusdesclong": property("string", "Long status description"),
		"probeid":        property("integer", "Probe identifier"),
		"probedesc":      property("string", "Probe description"),
	}, "checkid", "time")),
	Query: func(cfg Config) map[string]string {
		return map[string]string{"limit": "1000"} // max allowed
	},
	PostProcess: func(record, parentCtx map[string]any) map[string]any {
		if parentCtx != nil {
			record["checkid"] = parentCtx["checkid"]
		}
		return record
	},
}

// Checks are the monitors configured in Pingdom.
var Checks = &Stream{
	Name:        "checks",
	Path:        "/checks",
	PrimaryKeys: []string{"id"},
	RecordPath:  "checks",
	PageSize:    25000,
	Schema:      componentSchema("CheckWithStringType"),
	Query: func(cfg Config) map[string]string {
		return map[string]string{
			"limit":        "25000", // max allowed
			"include_tags": "true",
		}
	},
	Children: []*Stream{Results},
	ChildContext: func(record map[string]any) map[string]any {
		return map[string]any{"checkid": record["id"]}
	},
}

// Actions is the alert history.
//
// Manual schema: the published spec defines the alert item inline in a
// response wrapper, types userid/checkid/time as strings where the API
// returns integers, and types charged as string where it is a boolean.
var Actions = &Stream{
	Name:           "actions",
	Path:           "/actions",
	PrimaryKeys:    []string{"checkid", "time", "userid"},
	ReplicationKey: "time",
	RecordPath:     "actions.alerts",
	PageSize:       100,
	Schema: staticSchema(objectSchema(map[string]any{
		"checkid":      property("integer", "Check identifier"),
		"time":         property("integer", "Alert time (Unix timestamp)"),
		"userid":       property("integer", "User identifier"),
		"username":     property("string", "User name"),
		"via":          property("string", "Alert medium"),
		"status":       property("string", "Alert status"),
		"messageshort": property("string", "Short message"),
		"messagefull":  property("string", "Full message"),
		"sentto":       property("string", "Recipient address"),
		"charged":      property("boolean", "Whether charged"),
	}, "checkid", "time", "userid")),
	Query: func(cfg Config) map[string]string {
		return map[string]string{"limit": "100"} // max allowed
	},
}

// Contacts are the alerting contacts.
//
// The published ContactTargets schema types notification_targets as an
// anyOf over four referenced shapes (SMSes, Emails, APNS, AGCM); for
// extraction a plain object is all that is needed, so the anyOf is
// patched away.
var Contacts = &Stream{
	Name:        "contacts",
	Path:        "/alerting/contacts",
	PrimaryKeys: []string{"id"},
	RecordPath:  "contacts",
	PageSize:    100,
	Schema: func() (map[string]any, error) {
		base, err := componentSchema("ContactTargets")()
		if err != nil {
			return nil, err
		}
		return schemapatch.Apply(base, map[string]any{
			"properties": map[string]any{
				"notification_targets": map[string]any{
					"anyOf":       schemapatch.Delete,
					"type":        []any{"object", "null"},
					"description": "Notification targets configuration",
				},
			},
		}), nil
	},
}

// Probes are Pingdom's probe servers. Requires special permissions.
var Probes = &Stream{
	Name:        "probes",
	Path:        "/probes",
	PrimaryKeys: []string{"id"},
	RecordPath:  "probes",
	PageSize:    100,
	Restricted:  true,
	Schema:      componentSchema("Probe"),
}

// Maintenance windows. Requires special permissions.
//
// Manual schema: the item shape only exists inline in a response
// wrapper, and the published spec lists properties (repeatevery,
// effectiveto) the API does not consistently return.
var Maintenance = &Stream{
	Name:        "maintenance",
	Path:        "/maintenance",
	PrimaryKeys: []string{"id"},
	RecordPath:  "maintenance",
	PageSize:    100,
	Restricted:  true,
	Schema: staticSchema(objectSchema(map[string]any{
		"id":             property("integer", "Maintenance window identifier"),
		"description":    property("string", "Description"),
		"from":           property("integer", "Start timestamp"),
		"to":             property("integer", "End timestamp"),
		"recurrencetype": property("string", "Recurrence type"),
		"checks": objectSchema(map[string]any{
			"uptime": arrayOf(property("integer", ""), "Affected uptime checks"),
			"tms":    arrayOf(property("integer", ""), "Affected transaction checks"),
		}),
	}, "id")),
}

// Maintenance occurrences. Requires special permissions.
var MaintenanceOccurrences = &Stream{
	Name:        "maintenance_occurrences",
	Path:        "/maintenance.occurrences",
	PrimaryKeys: []string{"id"},
	RecordPath:  "occurrences",
	PageSize:    100,
	Restricted:  true,
	Schema: staticSchema(objectSchema(map[string]any{
		"id":            property("integer", "Occurrence identifier"),
		"maintenanceid": property("integer", "Parent maintenance window ID"),
		"from":          property("integer", "Start timestamp"),
		"to":            property("integer", "End timestamp"),
	}, "id")),
}

// Teams are the alerting teams. Requires special permissions.
var Teams = &Stream{
	Name:        "teams",
	Path:        "/alerting/teams",
	PrimaryKeys: []string{"id"},
	RecordPath:  "teams",
	PageSize:    100,
	Restricted:  true,
	Schema:      componentSchema("AlertingTeams"),
}

// TMSChecks are the transaction monitoring checks. Requires special
// permissions.
var TMSChecks = &Stream{
	Name:        "tms_checks",
	Path:        "/tms/check",
	PrimaryKeys: []string{"id"},
	RecordPath:  "checks",
	PageSize:    100,
	Restricted:  true,
	Schema:      componentSchema("CheckGeneral"),
}

// Roots returns the top-level streams a sync iterates, in a stable
// order. Child streams (results) are driven by their parent and never
// appear here.
func Roots(includeRestricted bool) []*Stream {
	all := []*Stream{
		Checks,
		Actions,
		Probes,
		Maintenance,
		MaintenanceOccurrences,
		Teams,
		Contacts,
		TMSChecks,
	}
	if includeRestricted {
		return all
	}
	var out []*Stream
	for _, s := range all {
		if !s.Restricted {
			out = append(out, s)
		}
	}
	return out
}

// All returns every known stream, children included.
func All() []*Stream {
	var out []*Stream
	for _, s := range Roots(true) {
		out = append(out, s)
		out = append(out, s.Children...)
	}
	return out
}

// Lookup finds a stream by name, children included.
func Lookup(name string) *Stream {
	for _, s := range All() {
		if s.Name == name {
			return s
		}
	}
	return nil
}
