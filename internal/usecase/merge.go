package usecase

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fede/whisperaloud/internal/config"
)

// mergeConfig deep-merges changes into a copy of base (nested maps are
// merged recursively at any depth) and returns the resulting typed
// config plus the set of changed top-level group names.
func mergeConfig(base config.Config, changes map[string]any) (config.Config, []string, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("marshal base config: %w", err)
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return config.Config{}, nil, fmt.Errorf("unmarshal base config: %w", err)
	}

	changedKeys := make(map[string]struct{})
	deepMerge(baseMap, changes, "", changedKeys)

	mergedJSON, err := json.Marshal(baseMap)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("marshal merged config: %w", err)
	}

	var merged config.Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return config.Config{}, nil, fmt.Errorf("unmarshal merged config: %w", err)
	}

	keys := make([]string, 0, len(changedKeys))
	for k := range changedKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return merged, keys, nil
}

// deepMerge folds src into dst in place, recording the top-level key of
// every leaf that actually changed value.
func deepMerge(dst map[string]any, src map[string]any, topLevel string, changed map[string]struct{}) {
	for k, v := range src {
		key := topLevel
		if key == "" {
			key = k
		}

		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap, key, changed)
			continue
		}

		existing, had := dst[k]
		if !had || !jsonEqual(existing, v) {
			changed[key] = struct{}{}
		}
		dst[k] = v
	}
}

func jsonEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
