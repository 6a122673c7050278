package content

import "strings"

// keys builds the Redis key layout under one prefix:
//
//	{prefix}content:{type}:{id}      JSON record
//	{prefix}content:{type}:idx       FT index per type
//	{prefix}out:{type}:{id}          SET of "toType:toID"
//	{prefix}in:{type}:{id}           SET of "fromType:fromID"
//	{prefix}seq:{type}               INCR counter
//	{prefix}schema:{type}            FT.CREATE form of the current index
type keys struct {
	prefix string
}

func (k keys) doc(typ, id string) string { return k.typePrefix(typ) + id }

func (k keys) typePrefix(typ string) string { return k.prefix + "content:" + typ + ":" }

func (k keys) index(typ string) string { return k.prefix + "content:" + typ + ":idx" }

func (k keys) out(typ, id string) string { return k.prefix + "out:" + typ + ":" + id }

func (k keys) in(typ, id string) string { return k.prefix + "in:" + typ + ":" + id }

func (k keys) seq(typ string) string { return k.prefix + "seq:" + typ }

func (k keys) schema(typ string) string { return k.prefix + "schema:" + typ }

func (k keys) idFromDoc(typ, key string) string {
	return strings.TrimPrefix(key, k.typePrefix(typ))
}

func member(typ, id string) string { return typ + ":" + id }

func splitMember(m string) (typ, id string, ok bool) {
	return strings.Cut(m, ":")
}
