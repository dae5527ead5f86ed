// Package jsonpatch applies RFC 7386 merge patches to provider documents.
package jsonpatch

import (
	"encoding/json"
	"fmt"

	jp "github.com/evanphx/json-patch/v5"
)

type PatchError struct {
	msg string
}

func (p *PatchError) Error() string {
	return p.msg
}

// Merge applies patch onto doc. Members of patch replace members of doc,
// nested objects are merged recursively and null members are removed.
// Members of doc absent from patch are kept.
func Merge(doc json.RawMessage, patch any) (json.RawMessage, error) {
	bs, err := json.Marshal(patch)
	if err != nil {
		return nil, &PatchError{fmt.Sprintf("failed to encode merge patch: %v", err)}
	}

	if len(doc) == 0 {
		doc = json.RawMessage("{}")
	}

	out, err := jp.MergePatch(doc, bs)
	if err != nil {
		return nil, &PatchError{fmt.Sprintf("failed to apply merge patch: %v", err)}
	}
	return out, nil
}
