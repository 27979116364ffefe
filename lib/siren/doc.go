// Package siren models Siren hypermedia documents: entities with
// properties, links, actions with typed fields, and embedded sub-entities.
//
// Decoding is total and defensive. Every attribute of a malformed or
// partial document resolves to a documented default (empty string, empty
// list, "GET" for action methods, "text" for field types) instead of
// failing, so any JSON object parses into a usable Entity:
//
//	entity, err := siren.Parse(body)   // err only for invalid JSON syntax
//
// Structural problems are surfaced separately through Validate, which
// collects violations per attribute without ever raising:
//
//	if v := entity.Validate(); !v.Empty() {
//	    // v maps "actions[0].name" -> ["Required."]
//	}
//
// Serialization via MarshalJSON is the semantic inverse of parsing: it
// omits attributes equal to their empty or default value, and re-parsing
// the output yields an equivalent graph.
//
// Items in an entity's "entities" array are classified by shape: a
// fragment carrying an href is a Link (an embedded link), anything else
// is a nested Entity (an embedded representation, which must carry a
// non-empty rel).
package siren
