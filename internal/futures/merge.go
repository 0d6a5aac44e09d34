package futures

import "fmt"

// DeepMerge folds src into dst and returns a new map; neither input is
// mutated. Scalar values overwrite, nested maps merge key-wise, and a
// kind conflict (map vs scalar, list vs map, list vs scalar) is an
// error so a malformed change can be rejected before anything is
// written.
func DeepMerge(dst, src map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}

	for k, v := range src {
		existing, ok := out[k]
		if !ok || existing == nil || v == nil {
			out[k] = v
			continue
		}

		existingMap, existingIsMap := existing.(map[string]any)
		srcMap, srcIsMap := v.(map[string]any)

		switch {
		case existingIsMap && srcIsMap:
			merged, err := DeepMerge(existingMap, srcMap)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = merged
		case existingIsMap != srcIsMap:
			return nil, fmt.Errorf("key %q: cannot merge %s into %s", k, kindOf(v), kindOf(existing))
		default:
			_, existingIsList := existing.([]any)
			_, srcIsList := v.([]any)
			if existingIsList != srcIsList {
				return nil, fmt.Errorf("key %q: cannot merge %s into %s", k, kindOf(v), kindOf(existing))
			}
			out[k] = v
		}
	}

	return out, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	case nil:
		return "null"
	default:
		return "scalar"
	}
}
