package redis

import "strings"

const (
	recordPrefix = "record:"
	tagIdsPrefix = "tagids:"
	allTagsName  = "tags"
	allIdsName   = "ids"
)

// Record hash fields.
const (
	fieldData  = "data"
	fieldMTime = "mtime"
	fieldTags  = "tags"
	fieldInf   = "inf"
)

// keyspace maps ids and tags onto Redis key names, optionally namespaced by a prefix.
type keyspace struct {
	prefix string
}

func (k keyspace) record(id string) string  { return k.prefix + recordPrefix + id }
func (k keyspace) tagIds(tag string) string { return k.prefix + tagIdsPrefix + tag }
func (k keyspace) allTags() string          { return k.prefix + allTagsName }
func (k keyspace) allIds() string           { return k.prefix + allIdsName }
func (k keyspace) idOf(recordKey string) string {
	return strings.TrimPrefix(recordKey, k.prefix+recordPrefix)
}

func (k keyspace) records(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = k.record(id)
	}
	return out
}

func (k keyspace) tagSets(tags []string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = k.tagIds(tag)
	}
	return out
}

// recordPattern matches every record key of the namespace.
func (k keyspace) recordPattern() string { return globEscape(k.prefix+recordPrefix) + "*" }

// namespacePattern matches every key of the namespace.
func (k keyspace) namespacePattern() string { return globEscape(k.prefix) + "*" }

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string { return globReplacer.Replace(s) }

func toArgs(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
