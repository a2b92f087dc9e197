package weights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"go-soundimage/nn"
	"go-soundimage/tensor"
)

// Load copies every tensor of sd into the layer tensor of the same name. shapes must
// match exactly. in strict mode, keys the layer has but sd lacks (missing) and keys sd has
// but the layer lacks (unexpected) are errors; otherwise they are skipped.
//
// the layer is only modified when no error is returned.
func Load(m nn.Layer, sd map[string]*tensor.Tensor, strict bool) error {
	_, err := load(m, sd, strict)
	return err
}

type loadSummary struct {
	loaded     int
	missing    []string
	unexpected []string
}

func load(m nn.Layer, sd map[string]*tensor.Tensor, strict bool) (loadSummary, error) {
	var summary loadSummary
	own := m.StateDict()

	var mismatched []string
	for name, dst := range own {
		src, found := sd[name]
		if !found {
			summary.missing = append(summary.missing, name)
			continue
		}
		if !tensor.IsSameSize(dst, src) {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected %v, got %v", name, dst.GetShape(), src.GetShape()))
		}
	}
	for name := range sd {
		if _, found := own[name]; !found {
			summary.unexpected = append(summary.unexpected, name)
		}
	}
	sort.Strings(summary.missing)
	sort.Strings(summary.unexpected)
	sort.Strings(mismatched)

	var problems []string
	if len(mismatched) > 0 {
		problems = append(problems, "size mismatch for "+strings.Join(mismatched, "; "))
	}
	if strict && len(summary.missing) > 0 {
		problems = append(problems, "missing keys: "+strings.Join(summary.missing, ", "))
	}
	if strict && len(summary.unexpected) > 0 {
		problems = append(problems, "unexpected keys: "+strings.Join(summary.unexpected, ", "))
	}
	if len(problems) > 0 {
		return summary, errors.Errorf("error loading state dict for %s: %s", m.Name(), strings.Join(problems, "; "))
	}

	for name, dst := range own {
		if src, found := sd[name]; found {
			copy(dst.GetData(), src.GetData())
			summary.loaded++
		}
	}
	return summary, nil
}

// LoadFile reads location (local path or gs:// url) and loads it into m.
func LoadFile(ctx context.Context, m nn.Layer, location string, strict bool) error {
	log := klog.FromContext(ctx)
	sd, err := ReadFile(ctx, location)
	if err != nil {
		return err
	}
	summary, err := load(m, sd, strict)
	if err != nil {
		return errors.WithMessagef(err, "loading %q", location)
	}
	log.Info("loaded weights", "model", m.Name(), "source", location, "tensors", summary.loaded)
	if len(summary.missing) > 0 || len(summary.unexpected) > 0 {
		log.Info("weights do not cover the model exactly", "missing", summary.missing, "unexpected", summary.unexpected)
	}
	return nil
}
