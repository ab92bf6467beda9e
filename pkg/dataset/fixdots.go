package dataset

import (
	"strings"

	"github.com/bft-labs/wsds/pkg/pipeline"
)

// FixDots rewrites every field name of sample to its dotted form in place:
// "jpg" becomes ".jpg". Reserved "__" keys and already dotted keys are left
// alone, so applying it twice is the same as applying it once.
func FixDots(sample pipeline.Sample) {
	for _, k := range sample.Keys() {
		if strings.HasPrefix(k, "__") || strings.HasPrefix(k, ".") {
			continue
		}
		sample["."+k] = sample[k]
		delete(sample, k)
	}
}
