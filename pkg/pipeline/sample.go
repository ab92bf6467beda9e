package pipeline

import "sort"

// Sample is the unit flowing between stages. Shard references, open streams,
// archive members and grouped training examples are all Samples and are told
// apart by their reserved keys.
type Sample map[string]any

// Reserved keys shared by the collaborator stages.
const (
	KeyURL    = "url"
	KeyStream = "stream"
	KeyFname  = "fname"
	KeyData   = "data"

	KeySampleKey = "__key__"
	KeySourceURL = "__url__"
)

// URL returns the shard URL carried by a sample, looking at both the shard
// reference key and the provenance key.
func (s Sample) URL() string {
	if u, ok := s[KeyURL].(string); ok {
		return u
	}
	if u, ok := s[KeySourceURL].(string); ok {
		return u
	}
	return ""
}

// Keys returns the sample keys in sorted order.
func (s Sample) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the sample.
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
