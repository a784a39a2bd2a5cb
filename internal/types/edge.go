package types

import "strings"

// Relation names a directed relation between two symbol UIDs (spec §3).
type Relation string

const (
	RelationCalls       Relation = "calls"
	RelationCalledBy    Relation = "called_by"
	RelationReferences  Relation = "references"
	RelationDefines     Relation = "defines"
	RelationImplements  Relation = "implements"
	RelationCallHier    Relation = "call_hierarchy"
)

// AllRelations lists every relation kind C5's negative-result
// primitives create a sentinel for.
var AllRelations = []Relation{
	RelationCalls,
	RelationCalledBy,
	RelationReferences,
	RelationDefines,
	RelationImplements,
}

// sentinelPrefix marks a none-edge target UID. Real UIDs never start
// with this prefix (see internal/uidgen), so a sentinel can never
// collide with a genuine symbol UID.
const sentinelPrefix = "__none__:"

// SentinelUID returns the reserved target UID representing a
// verified-empty result for the given relation.
func SentinelUID(relation Relation) string {
	return sentinelPrefix + string(relation)
}

// IsSentinelUID reports whether uid is a reserved none-edge target.
func IsSentinelUID(uid string) bool {
	return strings.HasPrefix(uid, sentinelPrefix)
}

// Edge is a directed relation between two symbol UIDs (spec §3).
type Edge struct {
	SourceUID  string   `json:"source_uid"`
	TargetUID  string   `json:"target_uid"`
	Relation   Relation `json:"relation"`
	Confidence float64  `json:"confidence"`
}

// IsSentinel reports whether this edge is a none-edge (a cached,
// verified-empty result) rather than a real relation.
func (e Edge) IsSentinel() bool {
	return IsSentinelUID(e.TargetUID)
}

// NoneEdges returns one sentinel edge per relation in AllRelations for
// uid, i.e. the result of C5's create_none_edges(uid).
func NoneEdges(uid string) []Edge {
	edges := make([]Edge, 0, len(AllRelations))
	for _, rel := range AllRelations {
		edges = append(edges, Edge{
			SourceUID:  uid,
			TargetUID:  SentinelUID(rel),
			Relation:   rel,
			Confidence: 1.0,
		})
	}
	return edges
}

// CallHierarchy is the result of get_call_hierarchy_for_symbol: nil
// means "unknown" (cache miss), a non-nil value with empty slices
// means "known empty" (a none-edge hit).
type CallHierarchy struct {
	Incoming []Location `json:"incoming"`
	Outgoing []Location `json:"outgoing"`
}
