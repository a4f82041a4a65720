// Package streamacc folds the partial-message fragments of a streamed model
// response into one complete message. The merge is a typed recursion over a
// closed set of JSON shapes: strings concatenate, numbers take the latest
// value, objects recurse, and arrays merge positionally by each element's
// "index" field. Anything else is a protocol error.
package streamacc

import (
	"errors"
	"fmt"

	"github.com/vaultpilot/vaultpilot/pkg/providers"
)

var (
	// ErrFragmentGap reports a positional array element arriving more than
	// one past the accumulated length.
	ErrFragmentGap = errors.New("fragment index leaves a gap")
	// ErrShape reports a fragment value outside the mergeable shape set, or
	// a type mismatch with the accumulated value.
	ErrShape = errors.New("unmergeable fragment shape")
)

// indexKey is the positional field streamed array elements carry. It is
// stripped from the final message because array position encodes it.
const indexKey = "index"

// Assembler accumulates message fragments. The zero value is not usable;
// construct with New.
type Assembler struct {
	acc map[string]any
}

func New() *Assembler {
	return &Assembler{acc: make(map[string]any)}
}

// Add merges one fragment into the accumulator. A returned error is a
// protocol error: the stream is malformed and the request should be aborted.
func (a *Assembler) Add(fragment map[string]any) error {
	merged, err := mergeObject(a.acc, fragment, "")
	if err != nil {
		return err
	}
	a.acc = merged
	return nil
}

// Message returns the assembled message: accumulated text content plus the
// tool-call list in positional order with index fields stripped.
func (a *Assembler) Message() (AssembledMessage, error) {
	msg := AssembledMessage{}
	if content, ok := a.acc["content"].(string); ok {
		msg.Content = content
	}

	rawCalls, ok := a.acc["tool_calls"].([]any)
	if !ok {
		return msg, nil
	}

	for i, raw := range rawCalls {
		callObj, ok := raw.(map[string]any)
		if !ok {
			return msg, fmt.Errorf("%w: tool_calls[%d] is not an object", ErrShape, i)
		}

		tc := providers.ToolCall{Type: "function", Function: &providers.FunctionCall{}}
		tc.ID, _ = callObj["id"].(string)
		if fn, ok := callObj["function"].(map[string]any); ok {
			tc.Name, _ = fn["name"].(string)
			tc.Function.Name = tc.Name
			tc.Function.Arguments, _ = fn["arguments"].(string)
		}
		msg.ToolCalls = append(msg.ToolCalls, tc)
	}

	return msg, nil
}

// AssembledMessage is the result of folding a fragment stream.
type AssembledMessage struct {
	Content   string
	ToolCalls []providers.ToolCall
}

func mergeObject(acc, frag map[string]any, path string) (map[string]any, error) {
	for key, fragVal := range frag {
		fieldPath := key
		if path != "" {
			fieldPath = path + "." + key
		}

		accVal, exists := acc[key]
		if !exists || accVal == nil {
			adopted, err := adopt(fragVal, fieldPath)
			if err != nil {
				return nil, err
			}
			if adopted != nil {
				acc[key] = adopted
			}
			continue
		}

		merged, err := mergeValue(accVal, fragVal, fieldPath)
		if err != nil {
			return nil, err
		}
		acc[key] = merged
	}
	return acc, nil
}

func mergeValue(acc, frag any, path string) (any, error) {
	if frag == nil {
		return acc, nil
	}

	switch accTyped := acc.(type) {
	case string:
		fragStr, ok := frag.(string)
		if !ok {
			return nil, mismatch(path, acc, frag)
		}
		return accTyped + fragStr, nil

	case float64:
		fragNum, ok := frag.(float64)
		if !ok {
			return nil, mismatch(path, acc, frag)
		}
		return fragNum, nil

	case map[string]any:
		fragObj, ok := frag.(map[string]any)
		if !ok {
			return nil, mismatch(path, acc, frag)
		}
		return mergeObject(accTyped, fragObj, path)

	case []any:
		fragArr, ok := frag.([]any)
		if !ok {
			return nil, mismatch(path, acc, frag)
		}
		return mergeArray(accTyped, fragArr, path)

	default:
		return nil, fmt.Errorf("%w: %s holds %T", ErrShape, path, acc)
	}
}

// mergeArray treats the fragment array as (position, partial-element) pairs,
// keyed by each element's index field, and merges every partial element into
// the accumulated element at that position.
func mergeArray(acc, frag []any, path string) ([]any, error) {
	for _, el := range frag {
		partial, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s element is %T, want object", ErrShape, path, el)
		}

		idxRaw, ok := partial[indexKey].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s element missing numeric %q", ErrShape, path, indexKey)
		}
		idx := int(idxRaw)

		switch {
		case idx < 0 || idx > len(acc):
			return nil, fmt.Errorf("%w: %s index %d with length %d", ErrFragmentGap, path, idx, len(acc))
		case idx == len(acc):
			adopted, err := adopt(stripIndex(partial), fmt.Sprintf("%s[%d]", path, idx))
			if err != nil {
				return nil, err
			}
			acc = append(acc, adopted)
		default:
			target, ok := acc[idx].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] holds %T", ErrShape, path, idx, acc[idx])
			}
			merged, err := mergeObject(target, stripIndex(partial), fmt.Sprintf("%s[%d]", path, idx))
			if err != nil {
				return nil, err
			}
			acc[idx] = merged
		}
	}
	return acc, nil
}

// adopt validates and deep-copies a fragment value that has no accumulated
// counterpart yet.
func adopt(frag any, path string) (any, error) {
	switch typed := frag.(type) {
	case nil:
		return nil, nil
	case string, float64:
		return typed, nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			adopted, err := adopt(v, path+"."+k)
			if err != nil {
				return nil, err
			}
			if adopted != nil {
				out[k] = adopted
			}
		}
		return out, nil
	case []any:
		return mergeArray(nil, typed, path)
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrShape, path, frag)
	}
}

func stripIndex(partial map[string]any) map[string]any {
	out := make(map[string]any, len(partial))
	for k, v := range partial {
		if k == indexKey {
			continue
		}
		out[k] = v
	}
	return out
}

func mismatch(path string, acc, frag any) error {
	return fmt.Errorf("%w: %s accumulated %T, fragment %T", ErrShape, path, acc, frag)
}
