package nycuapi

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
)

// Label is one key/label pair of a hierarchy level, in upstream order.
type Label struct {
	Key   string
	Value string
}

// ForEachEntry walks an upstream JSON collection in document order.
// Objects yield their keys; arrays (PHP's encoding of empty or sequential
// maps) yield decimal indexes. Anything else yields nothing.
func ForEachEntry(v gjson.Result, fn func(key string, value gjson.Result)) {
	if !v.IsObject() && !v.IsArray() {
		return
	}
	array := v.IsArray()
	i := 0
	v.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if array {
			k = strconv.Itoa(i)
			i++
		}
		fn(k, value)
		return true
	})
}

// ParseAcademicPeriods projects get_acysem rows ({"T": "1121"}) to codes.
func ParseAcademicPeriods(raw json.RawMessage) []string {
	periods := []string{}
	ForEachEntry(gjson.ParseBytes(raw), func(_ string, row gjson.Result) {
		if t := row.Get("T").String(); t != "" {
			periods = append(periods, t)
		}
	})
	return periods
}

// ParseTypes extracts the uid of every get_type row.
func ParseTypes(raw json.RawMessage) []string {
	uids := []string{}
	ForEachEntry(gjson.ParseBytes(raw), func(_ string, row gjson.Result) {
		if uid := row.Get("uid").String(); uid != "" {
			uids = append(uids, uid)
		}
	})
	return uids
}

// ParseLabels reads a key-to-label object returned by get_category,
// get_college and get_dep, preserving upstream order. Empty keys are kept.
func ParseLabels(raw json.RawMessage) []Label {
	labels := []Label{}
	ForEachEntry(gjson.ParseBytes(raw), func(key string, value gjson.Result) {
		labels = append(labels, Label{Key: key, Value: value.String()})
	})
	return labels
}
